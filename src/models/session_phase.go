package models

type SessionPhase string

const (
	SessionPhaseOff           SessionPhase = "off_session"
	SessionPhasePreopenWarmup SessionPhase = "preopen_warmup"
	SessionPhaseInSession     SessionPhase = "in_session"
	SessionPhaseAuctionGuard  SessionPhase = "auction_guard"
	SessionPhasePostClose     SessionPhase = "post_close"
)
