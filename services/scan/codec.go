package scan

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Kind discriminates the decoded payload shapes. It is always derived from
// the decoded structure itself; a kind tag in the raw text is re-validated
// against the fields actually present, never trusted verbatim.
type Kind string

const (
	KindCustomer    Kind = "customer"
	KindLoyaltyCard Kind = "loyaltyCard"
	KindPromoCode   Kind = "promoCode"
	KindUnknown     Kind = "unknown"
)

// ErrInvalidFormat marks raw text that is not a structured document at all.
// Structurally valid documents that match no known shape decode as
// KindUnknown instead, so forward-compatible codes stay observable.
var ErrInvalidFormat = errors.New("invalid payload format")

// Payload is the decoded tagged union. Only the fields of the active kind
// are populated.
type Payload struct {
	Kind Kind `json:"kind"`

	// customer
	CustomerID string `json:"customerId,omitempty"`
	Name       string `json:"name,omitempty"`

	// loyaltyCard (CustomerID shared with customer above)
	CardID     string `json:"cardId,omitempty"`
	ProgramID  string `json:"programId,omitempty"`
	BusinessID string `json:"businessId,omitempty"`
	CardNumber string `json:"cardNumber,omitempty"`

	// promoCode
	Code string `json:"code,omitempty"`

	// unknown
	RawText string `json:"rawText,omitempty"`
}

// Decode turns untrusted raw text into a Payload. The decode order is fixed:
// canonical camelCase fields first, then the legacy snake_case aliases still
// circulating on printed codes. Identifiers arrive as strings or numbers and
// are both coerced to strings.
func Decode(raw string) (*Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrInvalidFormat
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrInvalidFormat
	}

	if p := decodeLoyaltyCard(doc); p != nil {
		return p, nil
	}
	if p := decodePromoCode(doc); p != nil {
		return p, nil
	}
	if p := decodeCustomer(doc); p != nil {
		return p, nil
	}

	return &Payload{Kind: KindUnknown, RawText: trimmed}, nil
}

// Encode renders the canonical wire form of a payload. Unknown payloads are
// not encodable; they only ever come from decoding.
func Encode(p *Payload) (string, error) {
	switch p.Kind {
	case KindCustomer:
		if p.CustomerID == "" {
			return "", ErrInvalidFormat
		}
	case KindLoyaltyCard:
		if p.CardID == "" || p.CustomerID == "" {
			return "", ErrInvalidFormat
		}
	case KindPromoCode:
		if p.Code == "" {
			return "", ErrInvalidFormat
		}
	default:
		return "", ErrInvalidFormat
	}

	out, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeLoyaltyCard(doc map[string]any) *Payload {
	if tagged, ok := declaredKind(doc); ok && tagged != KindLoyaltyCard {
		return nil
	}

	cardID := stringField(doc, "cardId", "card_id")
	customerID := stringField(doc, "customerId", "customer_id")
	if cardID == "" || customerID == "" {
		return nil
	}

	return &Payload{
		Kind:       KindLoyaltyCard,
		CardID:     cardID,
		CustomerID: customerID,
		ProgramID:  stringField(doc, "programId", "program_id"),
		BusinessID: stringField(doc, "businessId", "business_id"),
		CardNumber: stringField(doc, "cardNumber", "card_number"),
	}
}

func decodePromoCode(doc map[string]any) *Payload {
	if tagged, ok := declaredKind(doc); ok && tagged != KindPromoCode {
		return nil
	}

	code := stringField(doc, "code", "promo_code", "promoCode")
	if code == "" {
		return nil
	}

	return &Payload{Kind: KindPromoCode, Code: code}
}

func decodeCustomer(doc map[string]any) *Payload {
	if tagged, ok := declaredKind(doc); ok && tagged != KindCustomer {
		return nil
	}

	customerID := stringField(doc, "customerId", "customer_id")
	if customerID == "" {
		return nil
	}

	return &Payload{
		Kind:       KindCustomer,
		CustomerID: customerID,
		Name:       stringField(doc, "name"),
	}
}

// declaredKind reads the kind tag, accepting the legacy "type" alias. The
// tag only narrows which shapes are tried; the shape's required fields still
// decide whether it matches.
func declaredKind(doc map[string]any) (Kind, bool) {
	for _, key := range []string{"kind", "type"} {
		v, ok := doc[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch s {
		case "customer":
			return KindCustomer, true
		case "loyaltyCard", "loyalty_card", "card":
			return KindLoyaltyCard, true
		case "promoCode", "promo_code", "promo":
			return KindPromoCode, true
		}
	}
	return KindUnknown, false
}

// stringField returns the first present alias coerced to a string. Numeric
// identifiers from older issuers are rendered without an exponent.
func stringField(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
