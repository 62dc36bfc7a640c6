package models

import (
	"time"

	id "rrfiler/pkg/domain"
)

// TransactionRecord is the finished collection record handed over by the
// record source. It is read-only here; the builder validates it.
type TransactionRecord struct {
	ID                 id.RecordID       `json:"id"`
	Transmitter        Transmitter       `json:"transmitter"`
	ReportingPersons   []ReportingPerson `json:"reporting_persons"`
	Property           Property          `json:"property"`
	Buyers             []Party           `json:"buyers"`
	Sellers            []Party           `json:"sellers"`
	Payments           []PaymentSource   `json:"payments"`
	ClosingDate        time.Time         `json:"closing_date"`
	TotalConsideration int64             `json:"total_consideration_cents"`
}

// Transmitter identifies the sending organization. The TCC may be replaced
// by the sandbox override before the document is built.
type Transmitter struct {
	Name      string  `json:"name"`
	TIN       string  `json:"tin"`
	TCC       string  `json:"tcc"`
	AccountID string  `json:"account_id"`
	Address   Address `json:"address"`
	Contact   Contact `json:"contact"`
}

// Contact is the transmitter's point of contact for the regulator.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Designation is the role the reporting person played in the closing.
type Designation string

const (
	DesignationClosingAgent    Designation = "closing_agent"
	DesignationSettlementAgent Designation = "settlement_agent"
	DesignationTitleInsurer    Designation = "title_insurer"
	DesignationDisburser       Designation = "disburser"
	DesignationDeedPreparer    Designation = "deed_preparer"
)

// ReportingPerson is the party designated to file.
type ReportingPerson struct {
	Designation Designation `json:"designation"`
	Name        string      `json:"name"`
	TIN         string      `json:"tin"`
	Address     Address     `json:"address"`
}

// Address is a postal address. Unit is the only optional component.
type Address struct {
	Street     string `json:"street"`
	Unit       string `json:"unit,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Complete reports whether every mandatory component is present.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.PostalCode != "" && a.Country != ""
}

// Property is the transferred real estate.
type Property struct {
	Address          Address `json:"address"`
	ParcelNumber     string  `json:"parcel_number,omitempty"`
	LegalDescription string  `json:"legal_description,omitempty"`
}

// PartyKind distinguishes natural persons from legal entities and trusts.
type PartyKind string

const (
	PartyIndividual PartyKind = "individual"
	PartyEntity     PartyKind = "entity"
	PartyTrust      PartyKind = "trust"
)

// Identification is a document-based credential.
type Identification struct {
	Type         string `json:"type"`
	Number       string `json:"number"`
	Jurisdiction string `json:"jurisdiction"`
}

// Party is a buyer (transferee) or seller (transferor). Individuals use the
// first/last name fields, entities and trusts use EntityName.
type Party struct {
	Kind         PartyKind       `json:"kind"`
	EntityName   string          `json:"entity_name,omitempty"`
	FirstName    string          `json:"first_name,omitempty"`
	LastName     string          `json:"last_name,omitempty"`
	DateOfBirth  string          `json:"date_of_birth,omitempty"`
	Address      Address         `json:"address"`
	TIN          string          `json:"tin,omitempty"`
	GovernmentID *Identification `json:"government_id,omitempty"`
	ForeignID    *Identification `json:"foreign_id,omitempty"`
}

// DisplayName is the name used in validation messages and the document.
func (p Party) DisplayName() string {
	if p.Kind == PartyIndividual {
		switch {
		case p.FirstName == "":
			return p.LastName
		case p.LastName == "":
			return p.FirstName
		}
		return p.FirstName + " " + p.LastName
	}
	return p.EntityName
}

// HasCredential reports whether the party carries at least one identifying
// credential: a tax id, a government id or a foreign equivalent.
func (p Party) HasCredential() bool {
	if p.TIN != "" {
		return true
	}
	if p.GovernmentID != nil && p.GovernmentID.Number != "" {
		return true
	}
	return p.ForeignID != nil && p.ForeignID.Number != "" && p.ForeignID.Jurisdiction != ""
}

// PaymentMethod is how consideration was paid.
type PaymentMethod string

const (
	PaymentWire     PaymentMethod = "wire"
	PaymentCheck    PaymentMethod = "check"
	PaymentCashiers PaymentMethod = "cashiers_check"
	PaymentCash     PaymentMethod = "cash"
	PaymentVirtual  PaymentMethod = "virtual_currency"
	PaymentOther    PaymentMethod = "other"
)

// PaymentSource is one source of funds.
type PaymentSource struct {
	Method        PaymentMethod `json:"method"`
	AmountCents   int64         `json:"amount_cents"`
	Institution   string        `json:"institution,omitempty"`
	AccountNumber string        `json:"account_number,omitempty"`
	PayerName     string        `json:"payer_name,omitempty"`
}
