// Package crm talks to the CRM over SOAP: the synchronous customer-quote
// bundle-maintain operation that creates offers, and the vehicle lookup used
// to enrich the buyer identity.
package crm

import "encoding/xml"

// Namespaces of the bundle-maintain service. The y6s namespace carries the
// tenant's custom extension fields.
const (
	nsGlobal = "http://sap.com/xi/SAPGlobal20/Global"
	nsCustom = "http://0001961652-one-off.sap.com/Y6SCLYCRY_"
)

// QuoteRequest is the envelope body of CustomerQuoteBundleMaintainRequest_sync_V1.
type QuoteRequest struct {
	XMLName  xml.Name       `xml:"glob:CustomerQuoteBundleMaintainRequest_sync_V1"`
	GlobNS   string         `xml:"xmlns:glob,attr"`
	CustomNS string         `xml:"xmlns:y6s,attr"`
	Quote    *CustomerQuote `xml:"CustomerQuote"`
}

// NewQuoteRequest wraps a quote with the namespace declarations the service
// expects.
func NewQuoteRequest(quote *CustomerQuote) QuoteRequest {
	return QuoteRequest{GlobNS: nsGlobal, CustomNS: nsCustom, Quote: quote}
}

// CustomerQuote is one offer document. The generic path sends it without
// items; the standard path sends one Item per line item.
type CustomerQuote struct {
	ActionCode           string `xml:"actionCode,attr"`
	ProcessingTypeCode   string `xml:"ProcessingTypeCode"`
	Name                 LocalizedText
	DocumentLanguageCode string      `xml:"DocumentLanguageCode"`
	BuyerParty           BuyerParty  `xml:"BuyerParty"`
	EmployeeResponsible  EmployeeRef `xml:"EmployeeResponsibleParty"`
	SellerParty          OrgCentre   `xml:"SellerParty"`
	SalesUnitParty       OrgCentre   `xml:"SalesUnitParty"`
	BusinessArea         BusinessArea

	Items []QuoteItem `xml:"Item,omitempty"`

	DocumentReference *DocumentReference `xml:"BusinessTransactionDocumentReference,omitempty"`
	Text              *QuoteText         `xml:"Text,omitempty"`

	// Custom extension fields.
	SalesGroup     string `xml:"y6s:zOVGrupoVendedores"`
	CenterCode     string `xml:"y6s:zOVIDCentro"`
	Plate          string `xml:"y6s:zOVPlaca"`
	FromPortal     string `xml:"y6s:zOVVieneDeHCI"`
	ExpressService string `xml:"y6s:zOVServExpress"`
	Mileage        string `xml:"y6s:zOVKilometraje"`
}

// LocalizedText is a value with a language attribute.
type LocalizedText struct {
	XMLName      xml.Name `xml:"Name"`
	Value        string   `xml:",chardata"`
	LanguageCode string   `xml:"languageCode,attr"`
}

// BuyerParty identifies the business partner the offer is issued to.
type BuyerParty struct {
	BusinessPartnerInternalID string `xml:"BusinessPartnerInternalID"`
}

// EmployeeRef references the responsible employee.
type EmployeeRef struct {
	EmployeeID string `xml:"EmployeeID"`
}

// OrgCentre references an organizational centre.
type OrgCentre struct {
	OrganisationalCentreID string `xml:"OrganisationalCentreID"`
}

// BusinessArea carries the routing attributes resolved from the
// (center, brand) mapping.
type BusinessArea struct {
	XMLName                 xml.Name `xml:"SalesAndServiceBusinessArea"`
	SalesOrganisationID     string   `xml:"SalesOrganisationID"`
	SalesOfficeID           string   `xml:"SalesOfficeID"`
	SalesGroupID            string   `xml:"SalesGroupID"`
	DistributionChannelCode string   `xml:"DistributionChannelCode"`
	DivisionCode            string   `xml:"DivisionCode"`
}

// QuoteItem is one submission line item.
type QuoteItem struct {
	ActionCode         string       `xml:"actionCode,attr"`
	ProcessingTypeCode string       `xml:"ProcessingTypeCode"`
	Product            ItemProduct  `xml:"ItemProduct"`
	ScheduleLine       ScheduleLine `xml:"ItemRequestedScheduleLine"`

	PositionType    string `xml:"y6s:zOVPosIDTipoPosicion"`
	ServiceKind     string `xml:"y6s:zOVPosTipServ"`
	WorkQuantity    string `xml:"y6s:zOVPosCantTrab"`
	PackageID       string `xml:"y6s:zID_PAQUETE"`
	PackageType     string `xml:"y6s:zTIPO_PAQUETE"`
	TheoreticalTime string `xml:"y6s:zOVPosTiempoTeorico"`
}

// ItemProduct identifies the product on both ID fields the service reads.
type ItemProduct struct {
	ProductID         string `xml:"ProductID"`
	ProductInternalID string `xml:"ProductInternalID"`
}

// ScheduleLine carries the requested quantity with its unit code.
type ScheduleLine struct {
	Quantity Quantity `xml:"Quantity"`
}

// Quantity is a decimal value with a unitCode attribute.
type Quantity struct {
	Value    string `xml:",chardata"`
	UnitCode string `xml:"unitCode,attr"`
}

// DocumentReference links the offer back to the originating appointment's
// ERP transaction.
type DocumentReference struct {
	ActionCode string `xml:"actionCode,attr"`
	UUID       string `xml:"UUID"`
	TypeCode   string `xml:"TypeCode"`
	RoleCode   string `xml:"RoleCode"`
}

// QuoteText is the free-text block; the generic path concatenates the
// selected services here.
type QuoteText struct {
	ActionCode   string `xml:"actionCode,attr"`
	TextTypeCode string `xml:"TextTypeCode"`
	ContentText  string `xml:"ContentText"`
}

// QuoteConfirmation is the response of the bundle-maintain operation: either
// a created quote with its ID, or a log of severity-coded messages, or both.
type QuoteConfirmation struct {
	XMLName xml.Name `xml:"CustomerQuoteBundleMaintainConfirmation_sync_V1"`
	Quote   struct {
		ID string `xml:"ID"`
	} `xml:"CustomerQuote"`
	Log ConfirmationLog `xml:"Log"`
}

// ConfirmationLog is the nested message log. Severity "3" marks a hard
// validation error.
type ConfirmationLog struct {
	MaximumSeverity string    `xml:"MaximumLogItemSeverityCode"`
	Items           []LogItem `xml:"Item"`
}

// LogItem is one log entry.
type LogItem struct {
	SeverityCode string `xml:"SeverityCode"`
	Note         string `xml:"Note"`
}

const errorSeverity = "3"

// ValidationErrors returns the notes of every severity-"3" log item, in
// order.
func (c *QuoteConfirmation) ValidationErrors() []string {
	var errs []string
	for _, item := range c.Log.Items {
		if item.SeverityCode == errorSeverity {
			errs = append(errs, item.Note)
		}
	}
	return errs
}

// OfferID returns the created quote identifier, empty when the response
// carries none.
func (c *QuoteConfirmation) OfferID() string {
	return c.Quote.ID
}
