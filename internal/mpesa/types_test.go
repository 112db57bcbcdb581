package mpesa

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExtractPaymentDetails(t *testing.T) {
	complete := []MetadataItem{
		{Name: "TransactionDate", Value: float64(20240315143000)},
		{Name: "Amount", Value: float64(150)},
		{Name: "PhoneNumber", Value: float64(254712345678)},
		{Name: "MpesaReceiptNumber", Value: "QK12XYZ789"},
	}

	t.Run("unordered items", func(t *testing.T) {
		meta := &CallbackMetadata{Item: complete}
		got, err := meta.ExtractPaymentDetails()
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if got.Amount != 150 {
			t.Errorf("amount = %v, want 150", got.Amount)
		}
		if got.ReceiptNumber != "QK12XYZ789" {
			t.Errorf("receipt = %q", got.ReceiptNumber)
		}
		if got.PhoneNumber != "254712345678" {
			t.Errorf("phone = %q", got.PhoneNumber)
		}
		want := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
		if !got.TransactionDate.Equal(want) {
			t.Errorf("date = %v, want %v", got.TransactionDate, want)
		}
	})

	t.Run("string typed values", func(t *testing.T) {
		meta := &CallbackMetadata{Item: []MetadataItem{
			{Name: "Amount", Value: "150.00"},
			{Name: "MpesaReceiptNumber", Value: "QK12XYZ789"},
			{Name: "TransactionDate", Value: "20240315143000"},
			{Name: "PhoneNumber", Value: "254712345678"},
		}}
		got, err := meta.ExtractPaymentDetails()
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if got.Amount != 150 {
			t.Errorf("amount = %v, want 150", got.Amount)
		}
	})

	t.Run("duplicate names keep first", func(t *testing.T) {
		items := append([]MetadataItem{{Name: "Amount", Value: float64(99)}}, complete...)
		meta := &CallbackMetadata{Item: items}
		got, err := meta.ExtractPaymentDetails()
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if got.Amount != 99 {
			t.Errorf("amount = %v, want first occurrence 99", got.Amount)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		meta := &CallbackMetadata{Item: complete[:2]}
		_, err := meta.ExtractPaymentDetails()
		if err == nil {
			t.Fatal("want error for missing fields")
		}
		if !strings.Contains(err.Error(), "MpesaReceiptNumber") {
			t.Errorf("error %q should name the missing field", err)
		}
	})

	t.Run("nil metadata", func(t *testing.T) {
		var meta *CallbackMetadata
		if _, err := meta.ExtractPaymentDetails(); err == nil {
			t.Fatal("want error for nil metadata")
		}
	})

	t.Run("bad transaction date", func(t *testing.T) {
		meta := &CallbackMetadata{Item: []MetadataItem{
			{Name: "Amount", Value: float64(150)},
			{Name: "MpesaReceiptNumber", Value: "QK12XYZ789"},
			{Name: "TransactionDate", Value: "not-a-date"},
			{Name: "PhoneNumber", Value: "254712345678"},
		}}
		if _, err := meta.ExtractPaymentDetails(); err == nil {
			t.Fatal("want error for unparseable date")
		}
	})
}

func TestFlexIntUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"number", `0`, 0, false},
		{"quoted number", `"1032"`, 1032, false},
		{"empty string", `""`, 0, false},
		{"null", `null`, 0, false},
		{"garbage", `"abc"`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f FlexInt
			err := json.Unmarshal([]byte(tc.raw), &f)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error for %s", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tc.raw, err)
			}
			if int(f) != tc.want {
				t.Errorf("got %d, want %d", int(f), tc.want)
			}
		})
	}
}

func TestSynthesizeCallbackMatchesLivePayload(t *testing.T) {
	amount := 150.0
	receipt := "QK12XYZ789"
	date := "20240315143000"
	phone := "254712345678"
	q := QueryResponse{
		MerchantRequestID:  "mr-1",
		CheckoutRequestID:  "ws_CO_1",
		ResultCode:         0,
		ResultDesc:         "The service request is processed successfully.",
		Amount:             &amount,
		MpesaReceiptNumber: &receipt,
		TransactionDate:    &date,
		PhoneNumber:        &phone,
	}

	env := q.SynthesizeCallback()
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID != "ws_CO_1" || cb.ResultCode != 0 {
		t.Fatalf("callback header = %+v", cb)
	}

	details, err := cb.CallbackMetadata.ExtractPaymentDetails()
	if err != nil {
		t.Fatalf("synthesized metadata must extract cleanly: %v", err)
	}
	if details.Amount != 150 || details.ReceiptNumber != receipt || details.PhoneNumber != phone {
		t.Errorf("details = %+v", details)
	}
}

func TestSynthesizeCallbackWithoutMetadata(t *testing.T) {
	q := QueryResponse{
		CheckoutRequestID: "ws_CO_2",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}
	env := q.SynthesizeCallback()
	if env.Body.StkCallback.CallbackMetadata != nil {
		t.Errorf("failure query must not synthesize metadata")
	}
}

func TestParseCallback(t *testing.T) {
	raw := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`)

	env, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if env.Body.StkCallback.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("checkout id = %q", env.Body.StkCallback.CheckoutRequestID)
	}
	if _, err := env.Body.StkCallback.CallbackMetadata.ExtractPaymentDetails(); err != nil {
		t.Errorf("extract: %v", err)
	}

	if _, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)); err == nil {
		t.Error("want error when CheckoutRequestID is absent")
	}
	if _, err := ParseCallback([]byte(`not json`)); err == nil {
		t.Error("want error for malformed body")
	}
}
