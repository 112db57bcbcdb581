package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// transactionDateLayout is the fixed numeric format Daraja uses for
// TransactionDate values, e.g. 20240101120000.
const transactionDateLayout = "20060102150405"

// ResultCodeCancelled is returned when the payer dismisses the STK prompt.
const ResultCodeCancelled = 1032

// CallbackEnvelope is the exact wire shape of the provider's asynchronous
// confirmation webhook. Reconciliation synthesizes the same shape from a
// status-query response so both paths share one completion code path.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as strings or numbers depending on the field
// and on whether the payload came from a live callback or a status query.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// PaymentDetails is the completed-charge metadata required to materialize a
// payment: all four fields must be present.
type PaymentDetails struct {
	Amount          float64
	ReceiptNumber   string
	PhoneNumber     string
	TransactionDate time.Time
}

// ExtractPaymentDetails pulls the required fields out of the unordered
// name/value item list. Lookup is by name; when the provider repeats a
// name the first occurrence wins. A missing field or an unparseable
// transaction date is an error.
func (m *CallbackMetadata) ExtractPaymentDetails() (*PaymentDetails, error) {
	if m == nil {
		return nil, fmt.Errorf("callback has no metadata")
	}

	seen := make(map[string]any, len(m.Item))
	for _, item := range m.Item {
		if _, dup := seen[item.Name]; !dup {
			seen[item.Name] = item.Value
		}
	}

	var (
		details PaymentDetails
		missing []string
	)

	if v, ok := seen["Amount"]; ok {
		amount, err := itemFloat(v)
		if err != nil {
			return nil, fmt.Errorf("metadata Amount: %w", err)
		}
		details.Amount = amount
	} else {
		missing = append(missing, "Amount")
	}

	if v, ok := seen["MpesaReceiptNumber"]; ok {
		details.ReceiptNumber = itemString(v)
	} else {
		missing = append(missing, "MpesaReceiptNumber")
	}

	if v, ok := seen["PhoneNumber"]; ok {
		details.PhoneNumber = itemString(v)
	} else {
		missing = append(missing, "PhoneNumber")
	}

	if v, ok := seen["TransactionDate"]; ok {
		date, err := time.Parse(transactionDateLayout, itemString(v))
		if err != nil {
			return nil, fmt.Errorf("metadata TransactionDate %q: %w", itemString(v), err)
		}
		details.TransactionDate = date
	} else {
		missing = append(missing, "TransactionDate")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("incomplete callback metadata, missing %s", strings.Join(missing, ", "))
	}

	return &details, nil
}

func itemString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; phone numbers and dates are
		// integral so render them without an exponent or fraction.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func itemFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric value %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// FlexInt tolerates the provider's habit of sending result codes as JSON
// numbers in callbacks but quoted strings in query responses.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid result code %s: %w", string(b), err)
	}
	*f = FlexInt(n)
	return nil
}

// STKPushResponse is the synchronous acknowledgement of a charge
// submission; the outcome itself arrives later via callback.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// QueryResponse is the status-query result. On success it carries the same
// metadata fields a callback would have delivered.
type QueryResponse struct {
	MerchantRequestID  string  `json:"MerchantRequestID"`
	CheckoutRequestID  string  `json:"CheckoutRequestID"`
	ResultCode         FlexInt `json:"ResultCode"`
	ResultDesc         string  `json:"ResultDesc"`
	Amount             *float64 `json:"Amount,omitempty"`
	MpesaReceiptNumber *string  `json:"MpesaReceiptNumber,omitempty"`
	TransactionDate    *string  `json:"TransactionDate,omitempty"`
	PhoneNumber        *string  `json:"PhoneNumber,omitempty"`
}

// StillPending reports whether the query outcome means the charge has not
// reached a terminal state yet, in which case the session must be left
// alone for the next reconciliation cycle.
func (q *QueryResponse) StillPending() bool {
	return strings.Contains(strings.ToLower(q.ResultDesc), "pending")
}

// SynthesizeCallback rebuilds the callback wire shape from a query
// response so a reconciled session flows through the identical completion
// logic as one confirmed by a live webhook.
func (q *QueryResponse) SynthesizeCallback() CallbackEnvelope {
	var items []MetadataItem
	if q.Amount != nil {
		items = append(items, MetadataItem{Name: "Amount", Value: *q.Amount})
	}
	if q.MpesaReceiptNumber != nil {
		items = append(items, MetadataItem{Name: "MpesaReceiptNumber", Value: *q.MpesaReceiptNumber})
	}
	if q.TransactionDate != nil {
		items = append(items, MetadataItem{Name: "TransactionDate", Value: *q.TransactionDate})
	}
	if q.PhoneNumber != nil {
		items = append(items, MetadataItem{Name: "PhoneNumber", Value: *q.PhoneNumber})
	}

	var env CallbackEnvelope
	env.Body.StkCallback = StkCallback{
		MerchantRequestID: q.MerchantRequestID,
		CheckoutRequestID: q.CheckoutRequestID,
		ResultCode:        int(q.ResultCode),
		ResultDesc:        q.ResultDesc,
	}
	if len(items) > 0 {
		env.Body.StkCallback.CallbackMetadata = &CallbackMetadata{Item: items}
	}
	return env
}

// ParseCallback decodes an inbound webhook body. The checkout request id is
// the one field nothing can proceed without.
func ParseCallback(raw []byte) (*CallbackEnvelope, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode stk callback: %w", err)
	}
	if strings.TrimSpace(env.Body.StkCallback.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("stk callback has no CheckoutRequestID")
	}
	return &env, nil
}

// B2CResult acknowledges a payout (refund) submission.
type B2CResult struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}
