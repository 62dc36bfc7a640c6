package builder

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"rrfiler/internal/filing/models"
	pstrings "rrfiler/pkg/platform/strings"
)

// RootElement is the document element every filing must carry.
const RootElement = "EFilingBatchXML"

// Party type codes identify the role a party plays in the activity.
const (
	RoleTransmitter        = "35"
	RoleTransmitterContact = "37"
	RoleReportingPerson    = "30"
	RoleTransferee         = "67"
	RoleTransferor         = "68"
)

// MandatedRoles must each appear at least once per activity.
var MandatedRoles = []string{
	RoleTransmitter,
	RoleTransmitterContact,
	RoleReportingPerson,
	RoleTransferee,
	RoleTransferor,
}

// Identification type codes.
const (
	IDTypeTIN           = "4"
	IDTypeStateID       = "5"
	IDTypePassport      = "6"
	IDTypeAlienRegistry = "7"
	IDTypeForeignTIN    = "9"
	IDTypeTCC           = "28"
	IDTypeOther         = "999"
)

const dateLayout = "20060102"

type xmlBatch struct {
	XMLName       xml.Name      `xml:"EFilingBatchXML"`
	FormTypeCode  string        `xml:"FormTypeCode,attr"`
	ActivityCount int           `xml:"ActivityCount,attr"`
	PartyCount    int           `xml:"PartyCount,attr"`
	PaymentCount  int           `xml:"PaymentCount,attr"`
	Activities    []xmlActivity `xml:"Activity"`
}

type xmlActivity struct {
	SeqNum             int          `xml:"SeqNum,attr"`
	FilingDate         string       `xml:"FilingDateText"`
	ClosingDate        string       `xml:"ClosingDateText"`
	TotalConsideration string       `xml:"TotalConsiderationAmountText"`
	Parties            []xmlParty   `xml:"Party"`
	Property           xmlProperty  `xml:"Property"`
	Payments           []xmlPayment `xml:"Payment"`
}

type xmlParty struct {
	SeqNum          int                 `xml:"SeqNum,attr"`
	TypeCode        string              `xml:"ActivityPartyTypeCode"`
	PartyKind       string              `xml:"PartyTypeCode,omitempty"`
	Designation     string              `xml:"ReportingPersonDesignationCode,omitempty"`
	BirthDate       string              `xml:"IndividualBirthDateText,omitempty"`
	Name            xmlPartyName        `xml:"PartyName"`
	Address         *xmlAddress         `xml:"Address,omitempty"`
	Phone           *xmlPhone           `xml:"PhoneNumber,omitempty"`
	Identifications []xmlIdentification `xml:"PartyIdentification"`
}

type xmlPartyName struct {
	SeqNum    int    `xml:"SeqNum,attr"`
	LastName  string `xml:"RawEntityIndividualLastName"`
	FirstName string `xml:"RawIndividualFirstName,omitempty"`
}

type xmlAddress struct {
	SeqNum     int    `xml:"SeqNum,attr"`
	Street     string `xml:"RawStreetAddress1Text"`
	Unit       string `xml:"RawStreetAddress2Text,omitempty"`
	City       string `xml:"RawCityText"`
	State      string `xml:"RawStateCodeText"`
	PostalCode string `xml:"RawZIPCode"`
	Country    string `xml:"RawCountryCodeText"`
}

type xmlPhone struct {
	SeqNum int    `xml:"SeqNum,attr"`
	Number string `xml:"PhoneNumberText"`
}

type xmlIdentification struct {
	SeqNum       int    `xml:"SeqNum,attr"`
	TypeCode     string `xml:"PartyIdentificationTypeCode"`
	Number       string `xml:"PartyIdentificationNumberText"`
	OtherType    string `xml:"OtherPartyIdentificationTypeText,omitempty"`
	Jurisdiction string `xml:"OtherIssuerCountryText,omitempty"`
}

type xmlProperty struct {
	SeqNum           int        `xml:"SeqNum,attr"`
	Address          xmlAddress `xml:"Address"`
	ParcelNumber     string     `xml:"ParcelNumberText,omitempty"`
	LegalDescription string     `xml:"LegalDescriptionText,omitempty"`
}

type xmlPayment struct {
	SeqNum        int    `xml:"SeqNum,attr"`
	Method        string `xml:"PaymentMethodCode"`
	Amount        string `xml:"PaymentAmountText"`
	Institution   string `xml:"FinancialInstitutionName,omitempty"`
	AccountNumber string `xml:"AccountNumberText,omitempty"`
	PayerName     string `xml:"PayerNameText,omitempty"`
}

// sequencer hands out SeqNum values. Elements are numbered in the order they
// are created, which matches the order encoding/xml writes them.
type sequencer struct{ n int }

func (s *sequencer) next() int {
	s.n++
	return s.n
}

func render(rec *models.TransactionRecord, at time.Time) ([]byte, error) {
	seq := &sequencer{}
	activity := xmlActivity{
		SeqNum:             seq.next(),
		FilingDate:         at.UTC().Format(dateLayout),
		ClosingDate:        rec.ClosingDate.UTC().Format(dateLayout),
		TotalConsideration: formatCents(rec.TotalConsideration),
	}

	t := rec.Transmitter
	activity.Parties = append(activity.Parties, xmlParty{
		SeqNum:   seq.next(),
		TypeCode: RoleTransmitter,
		Name:     xmlPartyName{SeqNum: seq.next(), LastName: clean(t.Name)},
		Address:  newAddress(seq, t.Address),
		Identifications: []xmlIdentification{
			{SeqNum: seq.next(), TypeCode: IDTypeTIN, Number: normalizeTIN(t.TIN)},
			{SeqNum: seq.next(), TypeCode: IDTypeTCC, Number: t.TCC},
		},
	})
	activity.Parties = append(activity.Parties, xmlParty{
		SeqNum:   seq.next(),
		TypeCode: RoleTransmitterContact,
		Name:     xmlPartyName{SeqNum: seq.next(), LastName: clean(t.Contact.Name)},
		Phone:    &xmlPhone{SeqNum: seq.next(), Number: pstrings.DigitsOnly(t.Contact.Phone)},
	})

	for _, rp := range rec.ReportingPersons {
		party := xmlParty{
			SeqNum:      seq.next(),
			TypeCode:    RoleReportingPerson,
			Designation: string(rp.Designation),
			Name:        xmlPartyName{SeqNum: seq.next(), LastName: clean(rp.Name)},
			Address:     newAddress(seq, rp.Address),
		}
		if rp.TIN != "" {
			party.Identifications = append(party.Identifications, xmlIdentification{
				SeqNum: seq.next(), TypeCode: IDTypeTIN, Number: normalizeTIN(rp.TIN),
			})
		}
		activity.Parties = append(activity.Parties, party)
	}
	for _, b := range rec.Buyers {
		activity.Parties = append(activity.Parties, newParty(seq, RoleTransferee, b))
	}
	for _, s := range rec.Sellers {
		activity.Parties = append(activity.Parties, newParty(seq, RoleTransferor, s))
	}

	activity.Property = xmlProperty{SeqNum: seq.next()}
	activity.Property.Address = *newAddress(seq, rec.Property.Address)
	activity.Property.ParcelNumber = clean(rec.Property.ParcelNumber)
	activity.Property.LegalDescription = clean(rec.Property.LegalDescription)

	for _, p := range rec.Payments {
		activity.Payments = append(activity.Payments, xmlPayment{
			SeqNum:        seq.next(),
			Method:        string(p.Method),
			Amount:        formatCents(p.AmountCents),
			Institution:   clean(p.Institution),
			AccountNumber: clean(p.AccountNumber),
			PayerName:     clean(p.PayerName),
		})
	}

	batch := xmlBatch{
		FormTypeCode:  DefaultDocumentPrefix,
		ActivityCount: 1,
		PartyCount:    len(activity.Parties),
		PaymentCount:  len(activity.Payments),
		Activities:    []xmlActivity{activity},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush batch: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func newParty(seq *sequencer, role string, p models.Party) xmlParty {
	party := xmlParty{
		SeqNum:    seq.next(),
		TypeCode:  role,
		PartyKind: partyKindCode(p.Kind),
		BirthDate: clean(p.DateOfBirth),
	}
	if p.Kind == models.PartyIndividual {
		party.Name = xmlPartyName{SeqNum: seq.next(), LastName: clean(p.LastName), FirstName: clean(p.FirstName)}
	} else {
		party.Name = xmlPartyName{SeqNum: seq.next(), LastName: clean(p.EntityName)}
	}
	if p.Address.Complete() {
		party.Address = newAddress(seq, p.Address)
	}
	if p.TIN != "" {
		party.Identifications = append(party.Identifications, xmlIdentification{
			SeqNum: seq.next(), TypeCode: IDTypeTIN, Number: normalizeTIN(p.TIN),
		})
	}
	if p.GovernmentID != nil && p.GovernmentID.Number != "" {
		code, other := governmentIDCode(p.GovernmentID.Type)
		party.Identifications = append(party.Identifications, xmlIdentification{
			SeqNum:       seq.next(),
			TypeCode:     code,
			Number:       clean(p.GovernmentID.Number),
			OtherType:    other,
			Jurisdiction: clean(p.GovernmentID.Jurisdiction),
		})
	}
	if p.ForeignID != nil && p.ForeignID.Number != "" {
		party.Identifications = append(party.Identifications, xmlIdentification{
			SeqNum:       seq.next(),
			TypeCode:     IDTypeForeignTIN,
			Number:       clean(p.ForeignID.Number),
			Jurisdiction: clean(p.ForeignID.Jurisdiction),
		})
	}
	return party
}

func newAddress(seq *sequencer, a models.Address) *xmlAddress {
	return &xmlAddress{
		SeqNum:     seq.next(),
		Street:     clean(a.Street),
		Unit:       clean(a.Unit),
		City:       clean(a.City),
		State:      clean(a.State),
		PostalCode: clean(a.PostalCode),
		Country:    strings.ToUpper(clean(a.Country)),
	}
}

func partyKindCode(kind models.PartyKind) string {
	switch kind {
	case models.PartyIndividual:
		return "I"
	case models.PartyTrust:
		return "T"
	default:
		return "E"
	}
}

func governmentIDCode(kind string) (code, other string) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "drivers_license", "state_id":
		return IDTypeStateID, ""
	case "passport":
		return IDTypePassport, ""
	case "alien_registration":
		return IDTypeAlienRegistry, ""
	}
	return IDTypeOther, clean(kind)
}

func clean(value string) string {
	return pstrings.CollapseSpace(value)
}

// formatCents renders an amount in cents as dollars with two decimals.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
