package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinwish/internal/domain/users"
	"spinwish/internal/mailer"
)

// receiptSender emails a payment receipt after settlement. It satisfies the
// payflow receipts hook; errors bubble up only to be logged there.
type receiptSender struct {
	mailer mailer.Client
	users  users.Store
	logger *zap.SugaredLogger
}

func (s *receiptSender) SendPaymentReceipt(toUserID uuid.UUID, receiptNumber string, amount float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := s.users.GetByID(ctx, toUserID)
	if err != nil {
		return err
	}
	if user == nil || user.Email == "" {
		return fmt.Errorf("no email on record for user %s", toUserID)
	}

	data := struct {
		Username      string
		ReceiptNumber string
		Amount        float64
		Date          string
	}{
		Username:      user.Username,
		ReceiptNumber: receiptNumber,
		Amount:        amount,
		Date:          time.Now().Format("2 Jan 2006 15:04"),
	}

	status, err := s.mailer.Send(mailer.PaymentReceiptTemplate, user.Username, user.Email, data)
	if err != nil {
		return err
	}
	s.logger.Infow("payment receipt sent", "user_id", toUserID, "status", status)
	return nil
}

// sendRefundNotice tells the payer their money is coming back. Best effort;
// the refund itself is already recorded.
func (s *receiptSender) sendRefundNotice(toUserID uuid.UUID, reference string, amount float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := s.users.GetByID(ctx, toUserID)
		if err != nil || user == nil || user.Email == "" {
			s.logger.Errorw("refund notice not sent, no recipient", "user_id", toUserID, "error", err)
			return
		}

		data := struct {
			Username  string
			Reference string
			Amount    float64
		}{
			Username:  user.Username,
			Reference: reference,
			Amount:    amount,
		}

		if _, err := s.mailer.Send(mailer.RefundNoticeTemplate, user.Username, user.Email, data); err != nil {
			s.logger.Errorw("refund notice not sent", "user_id", toUserID, "error", err)
		}
	}()
}
