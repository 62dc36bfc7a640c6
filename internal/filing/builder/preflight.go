package builder

import (
	"fmt"
	"regexp"
	"strings"

	"rrfiler/internal/filing/models"
	pstrings "rrfiler/pkg/platform/strings"
)

var (
	tinPattern       = regexp.MustCompile(`^[0-9]{9}$`)
	tccPattern       = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)
)

// placeholderTokens are values collaborators use for "not collected". The
// regulator rejects them, so they must never reach the document.
var placeholderTokens = map[string]struct{}{
	"UNKNOWN": {},
	"N/A":     {},
	"NA":      {},
	"NONE":    {},
	"TBD":     {},
	"XXX":     {},
	"?":       {},
}

var knownDesignations = map[models.Designation]struct{}{
	models.DesignationClosingAgent:    {},
	models.DesignationSettlementAgent: {},
	models.DesignationTitleInsurer:    {},
	models.DesignationDisburser:       {},
	models.DesignationDeedPreparer:    {},
}

var knownPaymentMethods = map[models.PaymentMethod]struct{}{
	models.PaymentWire:     {},
	models.PaymentCheck:    {},
	models.PaymentCashiers: {},
	models.PaymentCash:     {},
	models.PaymentVirtual:  {},
	models.PaymentOther:    {},
}

// field is one labelled value that will be written to the document.
type field struct {
	path  string
	value string
}

type checker struct {
	reasons []string
}

func (c *checker) failf(format string, args ...any) {
	c.reasons = append(c.reasons, fmt.Sprintf(format, args...))
}

// checkRecord is the data preflight. It returns every failure, not just the
// first, so an operator can fix the record in one pass.
func checkRecord(rec *models.TransactionRecord) []string {
	c := &checker{}

	if rec.ID == "" {
		c.failf("transaction record id is required")
	}
	c.checkTransmitter(rec.Transmitter)

	if len(rec.ReportingPersons) == 0 {
		c.failf("at least one reporting person designation is required")
	}
	for i, rp := range rec.ReportingPersons {
		label := fmt.Sprintf("reporting person %d", i+1)
		if _, ok := knownDesignations[rp.Designation]; !ok {
			c.failf("%s has unknown designation %q", label, rp.Designation)
		}
		if strings.TrimSpace(rp.Name) == "" {
			c.failf("%s name is required", label)
		}
		c.checkAddress(label, rp.Address)
	}

	if !rec.Property.Address.Complete() {
		c.failf("property address is incomplete")
	}

	if len(rec.Buyers) == 0 {
		c.failf("at least one buyer is required")
	}
	for i, buyer := range rec.Buyers {
		label := fmt.Sprintf("buyer %d", i+1)
		c.checkPartyName(label, buyer)
		if !buyer.HasCredential() {
			c.failf("%s has no identifying credential (tax id, government id or foreign id)", label)
		}
		if buyer.TIN != "" && !tinPattern.MatchString(normalizeTIN(buyer.TIN)) {
			c.failf("%s tax id must be 9 digits", label)
		}
		c.checkAddress(label, buyer.Address)
	}

	if len(rec.Sellers) == 0 {
		c.failf("at least one seller is required")
	}
	for i, seller := range rec.Sellers {
		c.checkPartyName(fmt.Sprintf("seller %d", i+1), seller)
	}

	if len(rec.Payments) == 0 {
		c.failf("at least one payment source is required")
	}
	for i, p := range rec.Payments {
		label := fmt.Sprintf("payment %d", i+1)
		if _, ok := knownPaymentMethods[p.Method]; !ok {
			c.failf("%s has unknown method %q", label, p.Method)
		}
		if p.AmountCents <= 0 {
			c.failf("%s amount must be positive", label)
		}
	}

	if rec.ClosingDate.IsZero() {
		c.failf("closing date is required")
	}
	if rec.TotalConsideration < 0 {
		c.failf("total consideration must not be negative")
	}

	for _, f := range outputFields(rec) {
		if isPlaceholder(f.value) {
			c.failf("%s contains placeholder value %q", f.path, strings.TrimSpace(f.value))
		}
	}

	return pstrings.Dedupe(c.reasons)
}

func (c *checker) checkTransmitter(t models.Transmitter) {
	switch {
	case t.TIN == "":
		c.failf("transmitter tax identifier is required")
	case !tinPattern.MatchString(normalizeTIN(t.TIN)):
		c.failf("transmitter tax identifier must be 9 digits")
	}
	switch {
	case t.TCC == "":
		c.failf("transmitter control code is required")
	case !tccPattern.MatchString(t.TCC):
		c.failf("transmitter control code must be 8 uppercase alphanumeric characters")
	}
	switch {
	case t.AccountID == "":
		c.failf("transmitting account identifier is required")
	case !accountIDPattern.MatchString(t.AccountID):
		c.failf("transmitting account identifier must be 1-32 alphanumeric characters")
	}
	if strings.TrimSpace(t.Name) == "" {
		c.failf("transmitter name is required")
	}
	c.checkAddress("transmitter", t.Address)
	if strings.TrimSpace(t.Contact.Name) == "" {
		c.failf("transmitter contact name is required")
	}
	if pstrings.DigitsOnly(t.Contact.Phone) == "" {
		c.failf("transmitter contact phone is required")
	}
}

func (c *checker) checkAddress(label string, a models.Address) {
	if !a.Complete() {
		c.failf("%s address is incomplete", label)
	}
}

func (c *checker) checkPartyName(label string, p models.Party) {
	switch p.Kind {
	case models.PartyIndividual:
		if strings.TrimSpace(p.LastName) == "" {
			c.failf("%s last name is required", label)
		}
	case models.PartyEntity, models.PartyTrust:
		if strings.TrimSpace(p.EntityName) == "" {
			c.failf("%s entity name is required", label)
		}
	default:
		c.failf("%s has unknown party kind %q", label, p.Kind)
	}
}

func isPlaceholder(value string) bool {
	_, ok := placeholderTokens[strings.ToUpper(strings.TrimSpace(value))]
	return ok
}

// normalizeTIN drops the separators people type into tax ids ("12-3456789",
// "123-45-6789"). Any other character is kept so the pattern rejects it.
func normalizeTIN(tin string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(tin)
}

// outputFields lists every free-text value render writes, with the label used
// in placeholder reasons.
func outputFields(rec *models.TransactionRecord) []field {
	var fields []field
	add := func(path, value string) {
		if value != "" {
			fields = append(fields, field{path: path, value: value})
		}
	}
	addAddress := func(prefix string, a models.Address) {
		add(prefix+" street", a.Street)
		add(prefix+" unit", a.Unit)
		add(prefix+" city", a.City)
		add(prefix+" state", a.State)
		add(prefix+" postal code", a.PostalCode)
		add(prefix+" country", a.Country)
	}
	addParty := func(prefix string, p models.Party) {
		add(prefix+" entity name", p.EntityName)
		add(prefix+" first name", p.FirstName)
		add(prefix+" last name", p.LastName)
		add(prefix+" date of birth", p.DateOfBirth)
		add(prefix+" tax id", p.TIN)
		addAddress(prefix+" address", p.Address)
		addIdent := func(kind string, ident *models.Identification) {
			if ident == nil {
				return
			}
			add(prefix+" "+kind+" type", ident.Type)
			add(prefix+" "+kind+" number", ident.Number)
			add(prefix+" "+kind+" jurisdiction", ident.Jurisdiction)
		}
		addIdent("government id", p.GovernmentID)
		addIdent("foreign id", p.ForeignID)
	}

	t := rec.Transmitter
	add("transmitter name", t.Name)
	addAddress("transmitter address", t.Address)
	add("transmitter contact name", t.Contact.Name)
	add("transmitter contact phone", t.Contact.Phone)

	for i, rp := range rec.ReportingPersons {
		prefix := fmt.Sprintf("reporting person %d", i+1)
		add(prefix+" name", rp.Name)
		add(prefix+" tax id", rp.TIN)
		addAddress(prefix+" address", rp.Address)
	}
	addAddress("property address", rec.Property.Address)
	add("property parcel number", rec.Property.ParcelNumber)
	add("property legal description", rec.Property.LegalDescription)
	for i, b := range rec.Buyers {
		addParty(fmt.Sprintf("buyer %d", i+1), b)
	}
	for i, s := range rec.Sellers {
		addParty(fmt.Sprintf("seller %d", i+1), s)
	}
	for i, p := range rec.Payments {
		prefix := fmt.Sprintf("payment %d", i+1)
		add(prefix+" institution", p.Institution)
		add(prefix+" account number", p.AccountNumber)
		add(prefix+" payer name", p.PayerName)
	}
	return fields
}
