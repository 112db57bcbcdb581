package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/9ssi7/exponent"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"spinwish/internal/domain/pushtokens"
)

// PaymentNotifier delivers payment state changes to the payer's devices.
// Delivery runs on its own goroutine with its own deadline so the payment
// flow never waits on Expo; failures are logged and forgotten.
type PaymentNotifier struct {
	push   PushSender
	tokens pushtokens.Store
	logger *zap.SugaredLogger
}

func NewPaymentNotifier(push PushSender, tokens pushtokens.Store, logger *zap.SugaredLogger) *PaymentNotifier {
	return &PaymentNotifier{push: push, tokens: tokens, logger: logger}
}

func (n *PaymentNotifier) PaymentStateChanged(userID uuid.UUID, checkoutID, state string, amount float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := n.send(ctx, userID, checkoutID, state, amount); err != nil {
			n.logger.Errorw("payment push not delivered",
				"user_id", userID,
				"checkout_request_id", checkoutID,
				"state", state,
				"error", err,
			)
		}
	}()
}

func (n *PaymentNotifier) send(ctx context.Context, userID uuid.UUID, checkoutID, state string, amount float64) error {
	tokens, err := n.tokens.GetTokensByUserID(ctx, userID)
	if err != nil {
		return err
	}
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return nil
	}

	title, body := paymentMessage(state, amount)
	screen := fmt.Sprintf("payments/%s", checkoutID)

	msgs := make([]*exponent.Message, 0, len(tokens))
	for _, t := range tokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":                "payment_state_changed",
				"checkout_request_id": checkoutID,
				"state":               state,
				"screen":              screen,
			},
		})
	}

	_, err = n.push.Publish(ctx, msgs)
	return err
}

func paymentMessage(state string, amount float64) (title, body string) {
	switch state {
	case "INITIATED":
		return "Confirm payment on your phone",
			fmt.Sprintf("Enter your M-Pesa PIN to pay KES %.2f", amount)
	case "COMPLETED":
		return "Payment received",
			fmt.Sprintf("Your payment of KES %.2f was successful", amount)
	case "CANCELLED":
		return "Payment cancelled",
			"You dismissed the payment prompt. You can try again anytime."
	default:
		return "Payment failed",
			fmt.Sprintf("Your payment of KES %.2f did not go through", amount)
	}
}
