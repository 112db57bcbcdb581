package mailer

import "embed"

const (
	FromName               = "SpinWish"
	maxRetries             = 3
	PaymentReceiptTemplate = "payment_receipt.tmpl"
	RefundNoticeTemplate   = "refund_notice.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
