package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/infra/events"
	"storefront/internal/payment"
	repo "storefront/internal/repository"
)

const maxTopUpAmount int64 = 100000

type ReferralPolicy struct {
	SignupBonus int64
	Reward      int64
}

// WalletUsecase は残高照会・チャージ・管理者調整・紹介特典
type WalletUsecase struct {
	tx       repo.TransactionManager
	gateway  payment.Gateway
	verifier CallbackVerifier
	ledger   WalletLedger
	clock    Clock
	currency string
	referral ReferralPolicy
	events   eventSink
	logger   *zap.Logger
}

func NewWalletUsecase(
	tx repo.TransactionManager,
	gateway payment.Gateway,
	verifier CallbackVerifier,
	publisher events.Publisher,
	clock Clock,
	currency string,
	referral ReferralPolicy,
	logger *zap.Logger,
) *WalletUsecase {
	sink := newEventSink(publisher, logger)
	return &WalletUsecase{
		tx:       tx,
		gateway:  gateway,
		verifier: verifier,
		clock:    clock,
		currency: currency,
		referral: referral,
		events:   sink,
		logger:   sink.logger,
	}
}

type WalletOutput struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type TopUpOutput struct {
	TopUpID int64          `json:"topup_id"`
	Amount  int64          `json:"amount"`
	Payment payment.Intent `json:"payment"`
}

type VerifyTopUpInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type AdminAdjustInput struct {
	Direction   string
	Amount      int64
	Description string
}

func (u *WalletUsecase) Get(ctx context.Context, userID int64) (WalletOutput, error) {
	if userID <= 0 {
		return WalletOutput{}, errUnauthorized()
	}
	var out WalletOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		w, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		out = WalletOutput{UserID: userID, Balance: w.Balance}
		return nil
	})
	if err != nil {
		return WalletOutput{}, err
	}
	return out, nil
}

// 新しい順
func (u *WalletUsecase) ListTransactions(ctx context.Context, userID int64, page, limit int) (Page[model.WalletTransaction], error) {
	if userID <= 0 {
		return Page[model.WalletTransaction]{}, errUnauthorized()
	}
	page, limit = pageOrDefault(page, limit)

	out := Page[model.WalletTransaction]{Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		txns, total, err := r.Wallets().ListTransactions(ctx, userID, page, limit)
		if err != nil {
			return dbError(err)
		}
		if txns == nil {
			txns = []model.WalletTransaction{}
		}
		out.Items, out.Total = txns, total
		return nil
	})
	if err != nil {
		return Page[model.WalletTransaction]{}, err
	}
	return out, nil
}

// CreateTopUp は決済インテントを作り、金額を固定した PENDING のチャージ記録を残す
func (u *WalletUsecase) CreateTopUp(ctx context.Context, userID int64, amount int64) (TopUpOutput, error) {
	if userID <= 0 {
		return TopUpOutput{}, errUnauthorized()
	}
	if amount <= 0 || amount > maxTopUpAmount {
		return TopUpOutput{}, NewBusinessError(http.StatusBadRequest, CodeValidation, "invalid amount",
			map[string]any{"min": 1, "max": maxTopUpAmount})
	}

	intent, err := u.gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:   amount,
		Currency: u.currency,
		Receipt:  "topup-" + strconv.FormatInt(userID, 10),
		Metadata: map[string]string{"user_id": strconv.FormatInt(userID, 10), "purpose": "wallet_topup"},
	})
	if err != nil {
		u.logger.Error("create topup intent failed", zap.Int64("user_id", userID), zap.Error(err))
		return TopUpOutput{}, NewBusinessError(http.StatusBadGateway, CodeGateway, "payment gateway unavailable", nil)
	}

	var out TopUpOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Wallets().CreateTopUp(ctx, model.WalletTopUp{
			UserID:         userID,
			GatewayOrderID: intent.ID,
			Amount:         amount,
			Status:         model.WalletTopUpStatusPending,
		})
		if err != nil {
			return dbError(err)
		}
		out = TopUpOutput{TopUpID: t.ID, Amount: t.Amount, Payment: intent}
		return nil
	})
	if err != nil {
		return TopUpOutput{}, err
	}
	return out, nil
}

// VerifyTopUp は署名検証後、記録済みの金額を一度だけ入金する
func (u *WalletUsecase) VerifyTopUp(ctx context.Context, userID int64, in VerifyTopUpInput) (WalletOutput, error) {
	if userID <= 0 {
		return WalletOutput{}, errUnauthorized()
	}
	verified, err := u.verifier.Verify(payment.RawCallback{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		Signature:        in.Signature,
	})
	if err != nil {
		u.logger.Warn("topup callback rejected", zap.Int64("user_id", userID), zap.String("gateway_order_id", in.GatewayOrderID))
		return WalletOutput{}, NewBusinessError(http.StatusBadRequest, CodePaymentVerification, "payment verification failed", nil)
	}

	var (
		out      WalletOutput
		credited int64
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Wallets().FindTopUpByGatewayOrderIDForUpdate(ctx, verified.GatewayOrderID())
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("topup")
		}
		if err != nil {
			return dbError(err)
		}
		if t.UserID != userID {
			return errForbidden()
		}

		if t.Status == model.WalletTopUpStatusPending {
			ref := verified.GatewayPaymentID()
			_, err := u.ledger.Credit(ctx, r.Wallets(), LedgerEntry{
				UserID:      userID,
				Amount:      t.Amount,
				Reason:      model.WalletReasonTopUp,
				Description: "wallet top-up",
				ExternalRef: &ref,
			})
			if errors.Is(err, ErrDuplicateLedgerEntry) {
				return NewBusinessError(http.StatusConflict, CodeInvalidState, "payment already credited", nil)
			}
			if err != nil {
				return dbError(err)
			}
			if err := r.Wallets().MarkTopUpCredited(ctx, t.ID); err != nil {
				return dbError(err)
			}
			credited = t.Amount
		}

		w, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		out = WalletOutput{UserID: userID, Balance: w.Balance}
		return nil
	})
	if err != nil {
		return WalletOutput{}, err
	}
	if credited > 0 {
		u.events.emit(ctx, walletEvent(userID, credited, model.WalletReasonTopUp, u.clock.Now()))
	}
	return out, nil
}

// AdminAdjust は管理者による残高の加減算。監査ログを残す
func (u *WalletUsecase) AdminAdjust(ctx context.Context, actorAdminUserID, userID int64, in AdminAdjustInput) (WalletOutput, error) {
	if actorAdminUserID <= 0 {
		return WalletOutput{}, errUnauthorized()
	}
	if userID <= 0 {
		return WalletOutput{}, NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	dir := model.WalletDirection(strings.ToUpper(strings.TrimSpace(in.Direction)))
	if dir != model.WalletDirectionCredit && dir != model.WalletDirectionDebit {
		return WalletOutput{}, NewHTTPError(http.StatusBadRequest, "invalid direction")
	}
	if in.Amount <= 0 {
		return WalletOutput{}, NewHTTPError(http.StatusBadRequest, "invalid amount")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "admin adjustment"
	}

	var out WalletOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Users().FindByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound("user")
			}
			return dbError(err)
		}
		before, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}

		entry := LedgerEntry{UserID: userID, Amount: in.Amount, Reason: model.WalletReasonAdminAdjustment, Description: desc}
		if dir == model.WalletDirectionCredit {
			_, err = u.ledger.Credit(ctx, r.Wallets(), entry)
		} else {
			_, err = u.ledger.Debit(ctx, r.Wallets(), entry)
		}
		if errors.Is(err, ErrInsufficientBalance) {
			return NewBusinessError(http.StatusUnprocessableEntity, CodeInsufficientWallet, "insufficient wallet balance",
				map[string]any{"balance": before.Balance, "required": in.Amount})
		}
		if err != nil {
			return dbError(err)
		}

		after, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		if err := writeAudit(ctx, r, actorAdminUserID, model.AuditActionAdjustWallet, model.AuditResourceWallet, after.ID,
			map[string]any{"balance": before.Balance},
			map[string]any{"balance": after.Balance, "direction": dir, "amount": in.Amount, "description": desc},
			u.clock,
		); err != nil {
			return err
		}
		out = WalletOutput{UserID: userID, Balance: after.Balance}
		return nil
	})
	if err != nil {
		return WalletOutput{}, err
	}
	if dir == model.WalletDirectionCredit {
		u.events.emit(ctx, walletEvent(userID, in.Amount, model.WalletReasonAdminAdjustment, u.clock.Now()))
	}
	return out, nil
}

// ApplyReferral は紹介コードを一度だけ登録し、本人と紹介者の両方に入金する
func (u *WalletUsecase) ApplyReferral(ctx context.Context, userID int64, code string) (WalletOutput, error) {
	if userID <= 0 {
		return WalletOutput{}, errUnauthorized()
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > 32 {
		return WalletOutput{}, NewHTTPError(http.StatusBadRequest, "invalid referral code")
	}

	var (
		out        WalletOutput
		referrerID int64
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("user")
		}
		if err != nil {
			return dbError(err)
		}
		if user.ReferredByUserID != nil {
			return errInvalidState("referral already applied", nil)
		}

		referrer, err := r.Users().FindByReferralCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return NewBusinessError(http.StatusUnprocessableEntity, CodeValidation, "unknown referral code",
				map[string]any{"code": code})
		}
		if err != nil {
			return dbError(err)
		}
		if referrer.ID == userID {
			return NewHTTPError(http.StatusBadRequest, "cannot use your own referral code")
		}

		if err := r.Users().SetReferredBy(ctx, userID, referrer.ID); err != nil {
			if errors.Is(err, repo.ErrDuplicateKey) {
				return errInvalidState("referral already applied", nil)
			}
			return dbError(err)
		}

		if u.referral.SignupBonus > 0 {
			if _, err := u.ledger.Credit(ctx, r.Wallets(), LedgerEntry{
				UserID: userID, Amount: u.referral.SignupBonus,
				Reason: model.WalletReasonReferralBonus, Description: "referral signup bonus",
			}); err != nil {
				return dbError(err)
			}
		}
		if u.referral.Reward > 0 {
			if _, err := u.ledger.Credit(ctx, r.Wallets(), LedgerEntry{
				UserID: referrer.ID, Amount: u.referral.Reward,
				Reason: model.WalletReasonReferralBonus, Description: "referral reward for inviting a new user",
			}); err != nil {
				return dbError(err)
			}
		}

		w, err := r.Wallets().GetOrCreate(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		out = WalletOutput{UserID: userID, Balance: w.Balance}
		referrerID = referrer.ID
		return nil
	})
	if err != nil {
		return WalletOutput{}, err
	}

	if u.referral.SignupBonus > 0 {
		u.events.emit(ctx, walletEvent(userID, u.referral.SignupBonus, model.WalletReasonReferralBonus, u.clock.Now()))
	}
	if u.referral.Reward > 0 {
		u.events.emit(ctx, walletEvent(referrerID, u.referral.Reward, model.WalletReasonReferralBonus, u.clock.Now()))
	}
	return out, nil
}

func walletEvent(userID, amount int64, reason model.WalletReason, now time.Time) events.Event {
	return events.Event{
		Type:       events.WalletCredited,
		UserID:     userID,
		Amount:     amount,
		Attributes: map[string]any{"reason": reason},
		OccurredAt: now,
	}
}
