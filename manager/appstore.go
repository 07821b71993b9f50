package manager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/realsocial/real/collab"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/store"
)

// Active subscriptions are re-verified at least this often.
const verifyInterval = 24 * time.Hour

// AppStoreManager tracks App Store subscriptions. The user's subscription
// level follows from them in the reactor.
type AppStoreManager struct {
	app *App
}

// AddReceipt verifies a receipt and records the subscription it proves.
// Submitting a receipt again refreshes the subscription.
func (m *AppStoreManager) AddReceipt(ctx context.Context, userID, receiptData string) (*model.AppStoreSub, error) {
	if err := check(struct {
		ReceiptData string `validate:"required"`
	}{receiptData}); err != nil {
		return nil, err
	}
	if _, err := m.app.Users.GetActive(ctx, userID); err != nil {
		return nil, err
	}
	receipt, err := m.app.Collab.AppStore.VerifyReceipt(ctx, receiptData, true)
	if err != nil {
		return nil, err
	}
	latest := receipt.Latest()
	if latest == nil {
		return nil, ErrInvalidReceipt
	}

	existing, err := m.app.Repos.AppStoreSub.Get(ctx, latest.OriginalTransactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.UserID != userID {
		return nil, withIDs(ErrReceiptOfOtherUser, "originalTransactionId", latest.OriginalTransactionID)
	}
	now := m.app.now()
	if existing == nil {
		sub := &model.AppStoreSub{
			OriginalTransactionID: latest.OriginalTransactionID,
			UserID:                userID,
			ReceiptData:           receiptData,
			CreatedAt:             now,
		}
		m.apply(sub, latest, now)
		if err := m.app.Repos.AppStoreSub.Add(ctx, sub); err != nil {
			return nil, err
		}
		return sub, nil
	}
	existing.ReceiptData = receiptData
	m.apply(existing, latest, now)
	if err := m.app.Repos.AppStoreSub.Put(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// apply copies a verified transaction into sub and schedules the next
// verification while the subscription is active.
func (m *AppStoreManager) apply(sub *model.AppStoreSub, tx *collab.ReceiptTransaction, now time.Time) {
	sub.ProductID = tx.ProductID
	sub.ExpiresAt = tx.ExpiresAt.UTC().Truncate(time.Microsecond)
	sub.CancelledAt = tx.CancelledAt
	sub.LastVerificationAt = now
	sub.NextVerificationAt = nil
	switch {
	case tx.CancelledAt != nil:
		sub.Status = model.SubCancelled
	case !sub.ExpiresAt.After(now):
		sub.Status = model.SubExpired
	default:
		sub.Status = model.SubActive
		next := now.Add(verifyInterval)
		if sub.ExpiresAt.Before(next) {
			next = sub.ExpiresAt
		}
		sub.NextVerificationAt = &next
	}
}

// Refresh re-verifies the active subscriptions that are due, returning
// how many it verified. A receipt that fails to verify is left for the
// next run.
func (m *AppStoreManager) Refresh(ctx context.Context) (int, error) {
	now := m.app.now()
	due, err := repo.Collect(m.app.Repos.AppStoreSub.DueBefore(ctx, now.Add(time.Microsecond)))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sub := range due {
		receipt, err := m.app.Collab.AppStore.VerifyReceipt(ctx, sub.ReceiptData, true)
		if err != nil {
			m.app.Logger.Warn("receipt verification failed",
				zap.String("originalTransactionId", sub.OriginalTransactionID),
				zap.Error(err))
			continue
		}
		latest := receipt.Latest()
		if latest == nil {
			continue
		}
		m.apply(sub, latest, now)
		if err := m.app.Repos.AppStoreSub.Put(ctx, sub); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SyncUser derives the user's subscription level from their
// subscriptions: DIAMOND while any is active, BASIC otherwise.
func (m *AppStoreManager) SyncUser(ctx context.Context, userID string) error {
	var expiresAt *time.Time
	for sub, err := range m.app.Repos.AppStoreSub.ByUser(ctx, userID) {
		if err != nil {
			return err
		}
		if sub.Status != model.SubActive {
			continue
		}
		if expiresAt == nil || sub.ExpiresAt.After(*expiresAt) {
			at := sub.ExpiresAt
			expiresAt = &at
		}
	}
	upd := store.NewUpdate()
	if expiresAt != nil {
		upd.Set(model.AttrSubscriptionLevel, string(model.SubscriptionDiamond)).
			Set(model.AttrSubscriptionExpiresAt, *expiresAt)
	} else {
		upd.Set(model.AttrSubscriptionLevel, string(model.SubscriptionBasic)).
			Remove(model.AttrSubscriptionExpiresAt)
	}
	_, err := m.app.Repos.User.Update(ctx, userID, upd, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}
