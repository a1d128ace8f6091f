package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSource identifies which fallback tier produced a resolved position.
type PositionSource string

const (
	SourceDevice  PositionSource = "DEVICE"
	SourceProfile PositionSource = "STORED_PROFILE"
	SourceNone    PositionSource = "NONE"
)

type NearbyPerson struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	PhotoURL    string   `json:"photo_url"`
	DistanceKm  *float64 `json:"distance_km,omitempty"` // verbatim from the directory service
}

type SkillCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Skill is the priced service the user is booking. RatePerHour is charged as
// a single flat amount per booking; TokenCost is the spark-token alternative.
type Skill struct {
	ID          string          `json:"id"`
	ProviderID  string          `json:"provider_id"`
	Title       string          `json:"title"`
	RatePerHour decimal.Decimal `json:"rate_per_hour"`
	Currency    string          `json:"currency"`
	TokenCost   decimal.Decimal `json:"token_cost"`
}

// BookingDraft is the in-progress booking form. Mutated by user edits,
// consumed once on submission, discarded on success or explicit cancel.
type BookingDraft struct {
	ProviderID   string       `json:"provider_id"`
	SkillID      string       `json:"skill_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	LocationText string       `json:"location_text"`
	Date         string       `json:"date"`
	Attachments  []Attachment `json:"attachments"` // 0..4
}

// Attachment carries a thumbnail through the draft. Content travels as
// base64 in JSON and is written out as a raw file part on submission.
type Attachment struct {
	Name    string `json:"name"`
	Content []byte `json:"content,omitempty"`
}

// BalanceSnapshot is fetched fresh every time the payment step is entered
// and treated as stale after submission.
type BalanceSnapshot struct {
	CashAmount   decimal.Decimal `json:"balance"`
	CashCurrency string          `json:"currency"`
	TokenAmount  decimal.Decimal `json:"spark_tokens"`
}

type PaymentMethod string

const (
	MethodWallet     PaymentMethod = "WALLET"
	MethodSparkToken PaymentMethod = "SPARK_TOKEN"
)

// PaymentOption is derived from a BalanceSnapshot and the priced skill;
// recomputed whenever either changes, never stored.
type PaymentOption struct {
	Method         PaymentMethod   `json:"method"`
	RequiredAmount decimal.Decimal `json:"required_amount"`
	Eligible       bool            `json:"eligible"`
}

type SubmissionState string

const (
	StateForm             SubmissionState = "FORM"
	StateAwaitingBalances SubmissionState = "AWAITING_BALANCES"
	StateChoosingMethod   SubmissionState = "CHOOSING_METHOD"
	StateSubmitting       SubmissionState = "SUBMITTING"
	StateSuccess          SubmissionState = "SUCCESS"
	StateFailed           SubmissionState = "FAILED"
)

// BookingSubmission records one pass through the payment flow for auditing.
type BookingSubmission struct {
	ID           string
	SessionID    string
	ProviderID   string
	SkillID      string
	Method       PaymentMethod
	IntentID     string
	State        SubmissionState
	FailureCause string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BookingEvent is the lifecycle record published to Kafka for each
// state-machine transition worth mirroring downstream.
type BookingEvent struct {
	SubmissionID string          `json:"submission_id"`
	SessionID    string          `json:"session_id"`
	State        SubmissionState `json:"state"`
	Method       PaymentMethod   `json:"method,omitempty"`
	Cause        string          `json:"cause,omitempty"`
	At           time.Time       `json:"at"`
}
