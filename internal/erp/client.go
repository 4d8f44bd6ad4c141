// Package erp talks to the legacy back office over SOAP. The only operation
// the portal needs is the per-plate date lookup that drives the frontend
// state machine.
package erp

import (
	"context"
	"encoding/xml"
	"time"

	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/soap"
)

const dateLookupAction = "Z3PF_GETDATOSASESORPROCESO"

// ServiceDates are the two dates the ERP reports for a plate. A nil field
// means the ERP returned the unset sentinel (empty or all-zero date).
type ServiceDates struct {
	LastService *time.Time
	Invoice     *time.Time
}

// Client issues date lookups against the ERP endpoint.
type Client struct {
	soap *soap.Client
	log  *logger.Logger
}

func NewClient(cfg config.ERPConfig, log *logger.Logger) *Client {
	return &Client{
		soap: soap.NewClient("erp", cfg.GetERPEndpoint(), cfg.GetERPUsername(), cfg.GetERPPassword(), cfg.GetERPTimeout(), log),
		log:  log,
	}
}

type dateLookupRequest struct {
	XMLName xml.Name `xml:"urn:sap-com:document:sap:rfc:functions Z3PF_GETDATOSASESORPROCESO"`
	Plate   string   `xml:"PI_PLACA"`
}

type dateLookupResponse struct {
	XMLName         xml.Name `xml:"Z3PF_GETDATOSASESORPROCESOResponse"`
	LastServiceDate string   `xml:"PE_FEC_ULT_SERV"`
	InvoiceDate     string   `xml:"PE_FEC_FACTURA"`
}

// LookupServiceDates queries the ERP for the last-service and invoice dates
// of the given plate. SOAP faults come back as *soap.Fault errors.
func (c *Client) LookupServiceDates(ctx context.Context, plate string) (ServiceDates, error) {
	var resp dateLookupResponse
	raw, err := c.soap.Call(ctx, dateLookupAction, dateLookupRequest{Plate: plate}, &resp)
	if err != nil {
		return ServiceDates{}, err
	}
	return parseServiceDates(resp, raw)
}
