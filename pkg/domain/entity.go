package domain

// Kind classifies a detected PII entity. The set is closed.
type Kind string

// Supported PII kinds.
const (
	KindPerson       Kind = "PERSON"
	KindEmail        Kind = "EMAIL"
	KindPhone        Kind = "PHONE"
	KindSSN          Kind = "SSN"
	KindCreditCard   Kind = "CREDIT_CARD"
	KindAddress      Kind = "ADDRESS"
	KindDate         Kind = "DATE"
	KindOrganization Kind = "ORGANIZATION"
	KindLocation     Kind = "LOCATION"
	KindIPAddress    Kind = "IP_ADDRESS"
	KindURL          Kind = "URL"
	KindBankAccount  Kind = "BANK_ACCOUNT"
)

var allKinds = []Kind{
	KindPerson,
	KindEmail,
	KindPhone,
	KindSSN,
	KindCreditCard,
	KindAddress,
	KindDate,
	KindOrganization,
	KindLocation,
	KindIPAddress,
	KindURL,
	KindBankAccount,
}

// tokenLabels maps each kind to the label used inside mask tokens.
var tokenLabels = map[Kind]string{
	KindPerson:       "PERSON",
	KindEmail:        "EMAIL",
	KindPhone:        "PHONE",
	KindSSN:          "SSN",
	KindCreditCard:   "CARD",
	KindAddress:      "ADDRESS",
	KindDate:         "DATE",
	KindOrganization: "ORG",
	KindLocation:     "LOCATION",
	KindIPAddress:    "IP",
	KindURL:          "URL",
	KindBankAccount:  "ACCOUNT",
}

// FallbackTokenLabel is used for kinds outside the closed set.
const FallbackTokenLabel = "PII"

// AllKinds returns the supported kinds in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	_, ok := tokenLabels[k]
	return ok
}

// TokenLabel returns the label embedded in mask tokens for k.
func (k Kind) TokenLabel() string {
	if label, ok := tokenLabels[k]; ok {
		return label
	}
	return FallbackTokenLabel
}

// TokenLabels returns a copy of the kind to token label table.
func TokenLabels() map[Kind]string {
	out := make(map[Kind]string, len(tokenLabels))
	for k, v := range tokenLabels {
		out[k] = v
	}
	return out
}

// Fixed confidences by detection source.
const (
	PatternConfidence     = 0.9
	NERPersonConfidence   = 0.85
	NEROrgConfidence      = 0.85
	NERLocationConfidence = 0.8
)

// Entity is a single detected PII occurrence. Start and End are byte offsets
// into the source text; Text always equals source[Start:End].
type Entity struct {
	Text       string  `json:"text" yaml:"text"`
	Kind       Kind    `json:"type" yaml:"type"`
	Start      int     `json:"start" yaml:"start"`
	End        int     `json:"end" yaml:"end"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Kinds returns the distinct kinds of entities in first-seen order.
func Kinds(entities []Entity) []Kind {
	seen := make(map[Kind]struct{}, len(entities))
	kinds := make([]Kind, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e.Kind]; ok {
			continue
		}
		seen[e.Kind] = struct{}{}
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// HasKind reports whether any entity is of one of the given kinds.
func HasKind(entities []Entity, kinds ...Kind) bool {
	for _, e := range entities {
		for _, k := range kinds {
			if e.Kind == k {
				return true
			}
		}
	}
	return false
}
