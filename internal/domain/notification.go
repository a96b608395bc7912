package domain

// Audience is the recipient group of a notification.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
)

// NotificationEvent is derived from an applied transition and never persisted.
type NotificationEvent struct {
	Intent      PaymentIntent
	Status      ConfirmationStatus
	Audience    Audience
	Version     int64        // ledger version the transition produced
	BankDetails *BankDetails // set for awaiting_manual_transfer
}

// BankDetails is the settlement account a customer pays into for a currency.
type BankDetails struct {
	Currency      string `yaml:"-" json:"currency"`
	Symbol        string `yaml:"symbol" json:"symbol"`
	BankName      string `yaml:"bank_name" json:"bankName"`
	AccountName   string `yaml:"account_name" json:"accountName"`
	AccountNumber string `yaml:"account_number" json:"accountNumber"`
	SwiftCode     string `yaml:"swift_code" json:"swiftCode,omitempty"`
	RoutingNumber string `yaml:"routing_number,omitempty" json:"routingNumber,omitempty"`
	IBAN          string `yaml:"iban,omitempty" json:"iban,omitempty"`
	SortCode      string `yaml:"sort_code,omitempty" json:"sortCode,omitempty"`
	BSB           string `yaml:"bsb,omitempty" json:"bsb,omitempty"`
	BranchCode    string `yaml:"branch_code,omitempty" json:"branchCode,omitempty"`
	IFSCCode      string `yaml:"ifsc_code,omitempty" json:"ifscCode,omitempty"`
	BankCode      string `yaml:"bank_code,omitempty" json:"bankCode,omitempty"`
}
