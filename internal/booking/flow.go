package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/skillbook/internal/geo"
	"github.com/example/skillbook/internal/models"
	"github.com/example/skillbook/internal/observability"
	"github.com/example/skillbook/internal/payments"
	"github.com/example/skillbook/internal/storage"
)

var (
	ErrInvalidDraft      = errors.New("booking: draft failed validation")
	ErrMethodNotEligible = errors.New("booking: chosen payment method is not eligible")
	ErrBadTransition     = errors.New("booking: operation not allowed in current state")
)

// BalanceSource exposes the two balance types independently so the flow can
// fetch them concurrently and degrade per-method when one fetch fails.
type BalanceSource interface {
	CashBalance(ctx context.Context) (decimal.Decimal, string, error)
	TokenBalance(ctx context.Context) (decimal.Decimal, error)
}

// EventSink receives booking lifecycle events, best-effort.
type EventSink interface {
	PublishBookingEvent(ev models.BookingEvent) error
}

// Notifier pushes a status update to the user's active session, best-effort.
type Notifier interface {
	Notify(sessionID string, ev models.BookingEvent) error
}

// Flow drives one booking through the payment state machine:
//
//	FORM -> AWAITING_BALANCES -> CHOOSING_METHOD -> SUBMITTING -> SUCCESS | FAILED
//
// SUBMITTING is never entered until both balance fetches have settled; a
// failed submission preserves the draft and Retry returns to CHOOSING_METHOD.
type Flow struct {
	Balances  BalanceSource
	Auth      payments.Authorizer
	Submitter Submitter
	Store     storage.SubmissionStore // optional audit trail
	Events    EventSink               // optional
	Dispatch  Notifier                // optional
	Logger    *slog.Logger

	SessionID string
	Coord     *geo.Coord // resolved position at booking time, may be nil

	mu       sync.Mutex
	state    models.SubmissionState
	draft    *models.BookingDraft
	skill    models.Skill
	options  []models.PaymentOption
	currency string
	intentID string
	subID    string
}

func NewFlow() *Flow {
	return &Flow{state: models.StateForm}
}

func (f *Flow) State() models.SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Options returns the payment options computed on entering CHOOSING_METHOD.
func (f *Flow) Options() []models.PaymentOption {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PaymentOption, len(f.options))
	copy(out, f.options)
	return out
}

// InsufficientFunds reports the first-class "no eligible method" condition.
// It is not an error state: the flow stays in CHOOSING_METHOD until the user
// tops up (RefreshBalances) or cancels.
func (f *Flow) InsufficientFunds() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != models.StateChoosingMethod {
		return false
	}
	for _, o := range f.options {
		if o.Eligible {
			return false
		}
	}
	return true
}

func validateDraft(d models.BookingDraft) error {
	switch {
	case d.Description == "":
		return fmt.Errorf("%w: description is empty", ErrInvalidDraft)
	case d.LocationText == "":
		return fmt.Errorf("%w: location is empty", ErrInvalidDraft)
	case d.Date == "":
		return fmt.Errorf("%w: date is missing", ErrInvalidDraft)
	case len(d.Attachments) > MaxAttachments:
		return fmt.Errorf("%w: more than %d attachments", ErrInvalidDraft, MaxAttachments)
	}
	return nil
}

// Begin validates the draft and, on pass, enters AWAITING_BALANCES: cash and
// token balances are requested concurrently, in no particular order, and the
// flow moves to CHOOSING_METHOD only once both have settled. A failed fetch
// marks that method ineligible instead of aborting.
func (f *Flow) Begin(ctx context.Context, draft models.BookingDraft, skill models.Skill) ([]models.PaymentOption, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.state != models.StateForm {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: Begin from %s", ErrBadTransition, f.state)
	}
	f.state = models.StateAwaitingBalances
	f.draft = &draft
	f.skill = skill
	f.subID = newID()
	f.mu.Unlock()

	f.record(ctx, models.StateAwaitingBalances, "", "")

	cash, tokens, currency, cashErr, tokenErr := f.fetchBalances(ctx)
	options := computeOptions(skill, cash, tokens, cashErr, tokenErr)

	f.mu.Lock()
	f.options = options
	f.currency = currency
	if f.currency == "" {
		f.currency = skill.Currency
	}
	f.state = models.StateChoosingMethod
	f.mu.Unlock()

	f.record(ctx, models.StateChoosingMethod, "", "")
	return options, nil
}

func (f *Flow) fetchBalances(ctx context.Context) (cash, tokens decimal.Decimal, currency string, cashErr, tokenErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cash, currency, cashErr = f.Balances.CashBalance(ctx)
	}()
	go func() {
		defer wg.Done()
		tokens, tokenErr = f.Balances.TokenBalance(ctx)
	}()
	wg.Wait()
	if cashErr != nil {
		f.log().Warn("cash balance fetch failed, wallet marked ineligible", "error", cashErr)
	}
	if tokenErr != nil {
		f.log().Warn("token balance fetch failed, spark tokens marked ineligible", "error", tokenErr)
	}
	return
}

// Eligibility boundaries are inclusive: a balance exactly equal to the
// required amount qualifies.
func computeOptions(skill models.Skill, cash, tokens decimal.Decimal, cashErr, tokenErr error) []models.PaymentOption {
	return []models.PaymentOption{
		{
			Method:         models.MethodWallet,
			RequiredAmount: skill.RatePerHour,
			Eligible:       cashErr == nil && cash.GreaterThanOrEqual(skill.RatePerHour),
		},
		{
			Method:         models.MethodSparkToken,
			RequiredAmount: skill.TokenCost,
			Eligible:       tokenErr == nil && tokens.GreaterThanOrEqual(skill.TokenCost),
		},
	}
}

// RefreshBalances re-fetches both balances while in CHOOSING_METHOD (after a
// top-up) and recomputes eligibility.
func (f *Flow) RefreshBalances(ctx context.Context) ([]models.PaymentOption, error) {
	f.mu.Lock()
	if f.state != models.StateChoosingMethod {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: RefreshBalances from %s", ErrBadTransition, f.state)
	}
	skill := f.skill
	f.mu.Unlock()

	cash, tokens, currency, cashErr, tokenErr := f.fetchBalances(ctx)
	options := computeOptions(skill, cash, tokens, cashErr, tokenErr)

	f.mu.Lock()
	f.options = options
	if currency != "" {
		f.currency = currency
	}
	f.mu.Unlock()
	return options, nil
}

// Choose authorizes the chosen eligible method and submits the booking.
// On success the draft is cleared and attachments released; on any failure
// the draft is preserved so the user can retry without re-entering data.
func (f *Flow) Choose(ctx context.Context, method models.PaymentMethod) (Confirmation, error) {
	f.mu.Lock()
	if f.state != models.StateChoosingMethod {
		f.mu.Unlock()
		return Confirmation{}, fmt.Errorf("%w: Choose from %s", ErrBadTransition, f.state)
	}
	var chosen *models.PaymentOption
	for i := range f.options {
		if f.options[i].Method == method {
			chosen = &f.options[i]
			break
		}
	}
	if chosen == nil || !chosen.Eligible {
		f.mu.Unlock()
		return Confirmation{}, fmt.Errorf("%w: %s", ErrMethodNotEligible, method)
	}
	f.state = models.StateSubmitting
	draft := *f.draft
	skill := f.skill
	currency := f.currency
	required := chosen.RequiredAmount
	f.mu.Unlock()

	f.record(ctx, models.StateSubmitting, method, "")
	observability.BookingsSubmitted.Inc()

	intentID, err := f.Auth.Authorize(ctx, method, required, currency)
	if err != nil {
		return Confirmation{}, f.fail(ctx, method, fmt.Errorf("authorization: %w", err))
	}

	f.mu.Lock()
	f.intentID = intentID
	f.mu.Unlock()

	conf, err := f.Submitter.Submit(ctx, SubmissionRequest{
		Draft:        draft,
		BookedUserID: skill.ProviderID,
		Coord:        f.Coord,
		IntentID:     intentID,
		Method:       method,
	})
	if err != nil {
		return Confirmation{}, f.fail(ctx, method, err)
	}

	// the booking is acknowledged; finalize the hold. A capture failure is
	// not a booking failure: the reservation stands and ops can capture it.
	if err := f.Auth.Capture(ctx, method, intentID); err != nil {
		f.log().Warn("payment capture failed after acknowledged booking",
			"error", err, "method", method, "intent_id", intentID)
	}

	f.mu.Lock()
	f.state = models.StateSuccess
	f.mu.Unlock()

	observability.BookingsSucceeded.Inc()
	f.record(ctx, models.StateSuccess, method, "")

	f.mu.Lock()
	f.draft = nil // draft cleared, attachments released
	f.options = nil
	f.mu.Unlock()
	return conf, nil
}

func (f *Flow) fail(ctx context.Context, method models.PaymentMethod, cause error) error {
	f.mu.Lock()
	f.state = models.StateFailed
	intentID := f.intentID
	f.mu.Unlock()

	// release the reservation made moments earlier; the next Choose after a
	// Retry authorizes afresh
	if intentID != "" {
		if err := f.Auth.Release(ctx, method, intentID); err != nil {
			f.log().Warn("payment release failed, hold left for reconciliation",
				"error", err, "method", method, "intent_id", intentID)
		}
		f.mu.Lock()
		f.intentID = ""
		f.mu.Unlock()
	}

	observability.BookingsFailed.Inc()
	f.record(ctx, models.StateFailed, method, cause.Error())
	return fmt.Errorf("booking submission failed: %w", cause)
}

// Retry re-enters CHOOSING_METHOD after a failed submission. The preserved
// draft and the already-computed options are kept.
func (f *Flow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != models.StateFailed {
		return fmt.Errorf("%w: Retry from %s", ErrBadTransition, f.state)
	}
	f.state = models.StateChoosingMethod
	return nil
}

// Reset returns a terminal flow to FORM for a fresh booking. Balances are
// stale by definition and will be re-fetched by the next Begin.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != models.StateSuccess && f.state != models.StateFailed {
		return fmt.Errorf("%w: Reset from %s", ErrBadTransition, f.state)
	}
	f.state = models.StateForm
	f.draft = nil
	f.options = nil
	f.intentID = ""
	f.subID = ""
	return nil
}

// Cancel discards the draft from any pre-submission state.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == models.StateSubmitting {
		return fmt.Errorf("%w: Cancel while SUBMITTING", ErrBadTransition)
	}
	f.state = models.StateForm
	f.draft = nil
	f.options = nil
	f.intentID = ""
	f.subID = ""
	return nil
}

// Draft returns the preserved draft, or nil once it has been cleared.
func (f *Flow) Draft() *models.BookingDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return nil
	}
	d := *f.draft
	return &d
}

// record mirrors a transition into the audit store, the event topic, and the
// session's websocket. All three are best-effort.
func (f *Flow) record(ctx context.Context, state models.SubmissionState, method models.PaymentMethod, cause string) {
	f.mu.Lock()
	subID := f.subID
	draft := f.draft
	intentID := f.intentID
	f.mu.Unlock()

	now := time.Now()
	if f.Store != nil && draft != nil {
		sub := &models.BookingSubmission{
			ID:           subID,
			SessionID:    f.SessionID,
			ProviderID:   draft.ProviderID,
			SkillID:      draft.SkillID,
			Method:       method,
			IntentID:     intentID,
			State:        state,
			FailureCause: cause,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		var err error
		if state == models.StateAwaitingBalances {
			err = f.Store.SaveSubmission(sub)
		} else {
			err = f.Store.UpdateSubmission(sub)
		}
		if err != nil {
			f.log().Warn("submission audit write failed", "error", err, "submission_id", subID)
		}
	}

	ev := models.BookingEvent{
		SubmissionID: subID,
		SessionID:    f.SessionID,
		State:        state,
		Method:       method,
		Cause:        cause,
		At:           now,
	}
	if f.Events != nil {
		if err := f.Events.PublishBookingEvent(ev); err != nil {
			f.log().Warn("booking event publish failed", "error", err)
		}
	}
	if f.Dispatch != nil && f.SessionID != "" {
		if err := f.Dispatch.Notify(f.SessionID, ev); err != nil {
			f.log().Warn("session notify failed", "error", err, "session_id", f.SessionID)
		}
	}
}

func (f *Flow) log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
