package agent

import (
	"github.com/molt-labs/molt-core/gossip"
	"github.com/molt-labs/molt-core/orderbook"
	"github.com/molt-labs/molt-core/policy"
)

// Config holds every operator-tunable default spec.md section 6 names,
// parsed from the command line by jessevdk/go-flags (no config file or
// environment variables are read), mirroring the struct-tag-driven flag definitions
// lnd.go's loadConfig builds on (the teacher's own config.go source
// was not present in the retrieval pack; only lnd.go's usage of the
// flags package and its *flags.Error/flags.ErrHelp handling survived
// into this module's grounding).
type Config struct {
	ListenAddr string   `long:"listenaddr" description:"host:port this node's transport listens on"`
	PeerAddrs  []string `long:"peeraddr" description:"address of a peer to dial at startup; may be repeated"`
	DataDir    string   `long:"datadir" description:"directory holding escrow.log, spending.log, and the wallet key" default:"./data"`
	LogLevel   string   `long:"loglevel" description:"btclog level: trace, debug, info, warn, error, critical" default:"info"`
	LogFile    string   `long:"logfile" description:"path to a rotating log file; empty disables file logging"`

	Fanout                      int `long:"fanout" description:"number of peers each gossip flood targets" default:"3"`
	TTLHops                     int `long:"ttlhops" description:"hop count a gossiped announcement survives before it stops relaying" default:"6"`
	MaxSeenEntries              int `long:"maxseenentries" description:"bound on the gossip dedup seen-set" default:"10000"`
	MaxOffersPerPeer            int `long:"maxoffersperpeer" description:"bound on live offers tracked per peer" default:"1"`
	MaxOffersTotal              int `long:"maxofferstotal" description:"bound on the aggregate orderbook size" default:"1000"`
	MaxMessagesPerPeerPerMinute int `long:"maxmsgsperpeerperminute" description:"per-peer gossip rate limit" default:"100"`

	MaxOfferLifetimeSecs   int    `long:"maxofferlifetimesecs" description:"furthest expires_at may sit past issued_at for a capacity announcement" default:"86400"`
	EscrowDefaultLockSecs  int    `long:"escrowdefaultlocksecs" description:"default locked_until horizon for a newly opened escrow" default:"3600"`
	SettlementFeeBp        uint32 `long:"settlementfeebp" description:"platform fee in basis points taken from every payout" default:"250"`

	AutonomyTier      string `long:"autonomytier" description:"conservative, moderate, or aggressive" default:"conservative"`
	MinPricePerHour   uint64 `long:"minpriceperhour" description:"policy floor below which an inbound job is denied"`
	MaxDurationHours  uint32 `long:"maxdurationhours" description:"policy ceiling on a single job's duration" default:"24"`
	MaxConcurrentJobs uint32 `long:"maxconcurrentjobs" description:"policy ceiling on simultaneously running jobs" default:"4"`
	HourlyBudget      uint64 `long:"hourlybudget" description:"policy ceiling on spend committed within one hourly window"`
	MarketPercentile  float64 `long:"marketpercentile" description:"order statistic the aggressive tier relaxes its price floor toward" default:"0.25"`
}

// ParseAutonomyTier maps the configured string to a policy.AutonomyTier,
// defaulting to Conservative for an unrecognized value so a typo in the
// config file fails safe rather than granting more autonomy than
// intended.
func (c Config) ParseAutonomyTier() policy.AutonomyTier {
	switch c.AutonomyTier {
	case "moderate":
		return policy.TierModerate
	case "aggressive":
		return policy.TierAggressive
	default:
		return policy.TierConservative
	}
}

// PolicyConfig builds the policy.Config bounds from the parsed flags.
func (c Config) PolicyConfig() policy.Config {
	return policy.Config{
		MinPricePerHour:   c.MinPricePerHour,
		MaxDurationHours:  c.MaxDurationHours,
		MaxConcurrentJobs: c.MaxConcurrentJobs,
		HourlyBudget:      c.HourlyBudget,
		MarketPercentile:  c.MarketPercentile,
	}
}

// GossipConfig builds the gossip.Config tunables from the parsed
// flags, falling back to gossip.DefaultConfig's values for anything
// not overridable from this struct (the trickle interval and
// announcement cache TTL are deliberately not exposed as flags; they
// are implementation details of the re-broadcast mechanism, not a
// deployment-facing knob spec.md section 6 names).
func (c Config) GossipConfig() gossip.Config {
	cfg := gossip.DefaultConfig()
	if c.Fanout > 0 {
		cfg.Fanout = c.Fanout
	}
	if c.TTLHops > 0 {
		cfg.TTLHops = uint8(c.TTLHops)
	}
	if c.MaxSeenEntries > 0 {
		cfg.MaxSeenEntries = c.MaxSeenEntries
	}
	if c.MaxMessagesPerPeerPerMinute > 0 {
		cfg.MaxMessagesPerPeerPerMinute = c.MaxMessagesPerPeerPerMinute
	}
	return cfg
}

// OrderbookMaxTotal returns the configured aggregate orderbook cap, or
// orderbook.DefaultMaxOffersTotal if unset.
func (c Config) OrderbookMaxTotal() int {
	if c.MaxOffersTotal > 0 {
		return c.MaxOffersTotal
	}
	return orderbook.DefaultMaxOffersTotal
}
