package crm

import (
	"context"
	"encoding/xml"
	"strings"

	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/soap"
)

// Fixed document values of the offer integration.
const (
	ProcessingTypeQuote = "Z300"
	ProcessingTypeItem  = "AGN"
	SellerCentreID      = "GMIT"
	ResponsibleEmployee = "8000000010"
	ReferenceTypeCode   = "12"
	ReferenceRoleCode   = "1"
	CommentTextTypeCode = "10024"
	ActionCreate        = "01"
)

const (
	quoteAction   = "CustomerQuoteBundleMaintainRequest_sync_V1"
	vehicleAction = "VehicleByPlateQuery_sync"
)

// Client issues the two CRM operations the offer engine needs.
type Client struct {
	quotes   *soap.Client
	vehicles *soap.Client
	log      *logger.Logger
}

func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	return &Client{
		quotes:   soap.NewClient("crm", cfg.GetCRMOfferEndpoint(), cfg.GetCRMUsername(), cfg.GetCRMPassword(), cfg.GetCRMTimeout(), log),
		vehicles: soap.NewClient("crm", cfg.GetCRMVehicleEndpoint(), cfg.GetCRMUsername(), cfg.GetCRMPassword(), cfg.GetCRMTimeout(), log),
		log:      log,
	}
}

// SubmitQuote sends one bundle-maintain request and returns the parsed
// confirmation. Transport failures and SOAP faults come back as errors;
// validation errors live inside the confirmation log.
func (c *Client) SubmitQuote(ctx context.Context, quote *CustomerQuote) (*QuoteConfirmation, error) {
	var conf QuoteConfirmation
	req := NewQuoteRequest(quote)
	if _, err := c.quotes.Call(ctx, quoteAction, req, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

type vehicleQuery struct {
	XMLName xml.Name `xml:"glob:VehicleByPlateQuery_sync"`
	GlobNS  string   `xml:"xmlns:glob,attr"`
	Plate   string   `xml:"VehiclePlateSelection>Placa"`
}

type vehicleQueryResponse struct {
	XMLName xml.Name `xml:"VehicleByPlateResponse_sync"`
	Vehicle struct {
		Plate    string `xml:"Placa"`
		ClientID string `xml:"zIDCliente"`
	} `xml:"Vehicle"`
}

// VehicleInfo is the slice of the CRM vehicle master the engine cares
// about: the external customer identifier tied to the vehicle record.
type VehicleInfo struct {
	Found    bool
	ClientID string
}

// LookupVehicle queries the CRM vehicle master by plate. A vehicle without
// a record reads as not found, never as an error.
func (c *Client) LookupVehicle(ctx context.Context, plate string) (VehicleInfo, error) {
	var resp vehicleQueryResponse
	req := vehicleQuery{GlobNS: nsGlobal, Plate: plate}
	if _, err := c.vehicles.Call(ctx, vehicleAction, req, &resp); err != nil {
		return VehicleInfo{}, err
	}

	clientID := strings.TrimSpace(resp.Vehicle.ClientID)
	return VehicleInfo{
		Found:    resp.Vehicle.Plate != "" || clientID != "",
		ClientID: clientID,
	}, nil
}
