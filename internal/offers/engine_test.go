package offers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/crm"
	"taller_portal_backend/internal/customers"
	"taller_portal_backend/internal/routing"
	"taller_portal_backend/platform/apperr"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/soap"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeStore struct {
	appointments map[uuid.UUID]*domain.Appointment
	products     map[uuid.UUID][]domain.Product
	extras       map[uuid.UUID][]domain.AdditionalService

	successes []recordedSuccess
	failures  []recordedFailure
}

type recordedSuccess struct {
	id      uuid.UUID
	offerID string
}

type recordedFailure struct {
	id           uuid.UUID
	reason       string
	countAttempt bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appointments: make(map[uuid.UUID]*domain.Appointment),
		products:     make(map[uuid.UUID][]domain.Product),
		extras:       make(map[uuid.UUID][]domain.AdditionalService),
	}
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	copied := *appt
	return &copied, nil
}

func (s *fakeStore) RecordOfferSuccess(_ context.Context, id uuid.UUID, offerID string, _ time.Time) error {
	s.successes = append(s.successes, recordedSuccess{id: id, offerID: offerID})
	return nil
}

func (s *fakeStore) RecordOfferFailure(_ context.Context, id uuid.UUID, reason string, countAttempt bool) error {
	s.failures = append(s.failures, recordedFailure{id: id, reason: reason, countAttempt: countAttempt})
	return nil
}

func (s *fakeStore) ListProducts(_ context.Context, id uuid.UUID) ([]domain.Product, error) {
	return s.products[id], nil
}

func (s *fakeStore) ListAdditionalServices(_ context.Context, id uuid.UUID) ([]domain.AdditionalService, error) {
	return s.extras[id], nil
}

type fakeGateway struct {
	confirmation *crm.QuoteConfirmation
	submitErr    error
	submitted    []*crm.CustomerQuote

	vehicleInfo crm.VehicleInfo
	vehicleErr  error
}

func (g *fakeGateway) SubmitQuote(_ context.Context, quote *crm.CustomerQuote) (*crm.QuoteConfirmation, error) {
	g.submitted = append(g.submitted, quote)
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.confirmation, nil
}

func (g *fakeGateway) LookupVehicle(context.Context, string) (crm.VehicleInfo, error) {
	return g.vehicleInfo, g.vehicleErr
}

type fakeResolver struct {
	mapping *routing.Mapping
}

func (r *fakeResolver) Resolve(context.Context, string, string) (*routing.Mapping, error) {
	return r.mapping, nil
}

type fakeDirectory struct {
	byDocument map[string]*customers.Customer
	byID       map[uuid.UUID]*customers.Customer
	vehicles   map[string]*customers.Vehicle
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byDocument: make(map[string]*customers.Customer),
		byID:       make(map[uuid.UUID]*customers.Customer),
		vehicles:   make(map[string]*customers.Vehicle),
	}
}

func (d *fakeDirectory) GetCustomerByDocument(_ context.Context, document string) (*customers.Customer, error) {
	if c, ok := d.byDocument[document]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("customer not found")
}

func (d *fakeDirectory) GetCustomerByID(_ context.Context, id uuid.UUID) (*customers.Customer, error) {
	if c, ok := d.byID[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("customer not found")
}

func (d *fakeDirectory) GetVehicleByPlate(_ context.Context, plate string) (*customers.Vehicle, error) {
	if v, ok := d.vehicles[plate]; ok {
		return v, nil
	}
	return nil, apperr.NotFound("vehicle not found")
}

// =============================================================================
// Helpers
// =============================================================================

const genericAccountID = "1200166011"

func testCRMCfg() config.CRMConfig {
	return &config.Config{
		CRMOfferEndpoint:   "https://crm.example.test/quotes",
		CRMVehicleEndpoint: "https://crm.example.test/vehicles",
		CRMTimeout:         time.Second,
		GenericCustomerID:  genericAccountID,
	}
}

func standardAppointment(id uuid.UUID) *domain.Appointment {
	return &domain.Appointment{
		ID:                id,
		AppointmentNumber: "CITA-20260310-AB12C",
		CustomerDocument:  "900123456",
		VehiclePlate:      "ABC123",
		CenterCode:        "GM01",
		BrandCode:         "CHEV",
		PackageID:         "PKG-40K",
		ERPTransactionID:  "0001234567",
		MaintenanceType:   "Mantenimiento 40.000 km",
	}
}

func confirmationWith(id string, notes ...crm.LogItem) *crm.QuoteConfirmation {
	conf := &crm.QuoteConfirmation{}
	conf.Quote.ID = id
	conf.Log.Items = notes
	return conf
}

func severity3(note string) crm.LogItem {
	return crm.LogItem{SeverityCode: "3", Note: note}
}

func newTestEngine(store *fakeStore, gateway *fakeGateway, resolver *fakeResolver, directory *fakeDirectory) *Engine {
	return NewEngine(store, gateway, resolver, directory, nil, testCRMCfg(), logger.New("test"))
}

func seedStandard(store *fakeStore, directory *fakeDirectory) uuid.UUID {
	id := uuid.New()
	appt := standardAppointment(id)
	store.appointments[id] = appt
	store.products[id] = []domain.Product{
		{ProductID: "MANT40K", PositionType: "P001", Quantity: 1, AltQuantity: 2.5, WorkTimeValue: 3},
	}
	directory.byDocument[appt.CustomerDocument] = &customers.Customer{
		ID:             uuid.New(),
		DocumentNumber: appt.CustomerDocument,
		CRMInternalID:  "1000777",
	}
	return id
}

// =============================================================================
// Tests
// =============================================================================

func TestCreateOfferSuccess(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{confirmation: confirmationWith("8000012345")}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{SalesOrganizationID: "SO01"}}, directory)

	result, err := engine.CreateOffer(context.Background(), id)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if result.OfferID != "8000012345" {
		t.Errorf("OfferID = %q, want 8000012345", result.OfferID)
	}
	if result.Synthesized {
		t.Error("Synthesized = true for a real offer id")
	}
	if len(store.successes) != 1 || store.successes[0].offerID != "8000012345" {
		t.Errorf("recorded successes = %+v, want one entry with the offer id", store.successes)
	}
	if len(store.failures) != 0 {
		t.Errorf("recorded failures = %+v, want none", store.failures)
	}
	if len(gateway.submitted) != 1 {
		t.Fatalf("submitted %d quotes, want 1", len(gateway.submitted))
	}
	quote := gateway.submitted[0]
	if quote.BuyerParty.BusinessPartnerInternalID != "1000777" {
		t.Errorf("buyer = %q, want the customer's CRM account", quote.BuyerParty.BusinessPartnerInternalID)
	}
	if len(quote.Items) != 1 {
		t.Fatalf("quote carries %d items, want 1", len(quote.Items))
	}
}

func TestCreateOfferIdempotentOnExistingID(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	store.appointments[id].OfferID = "8000099999"
	gateway := &fakeGateway{}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	result, err := engine.CreateOffer(context.Background(), id)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if result.OfferID != "8000099999" {
		t.Errorf("OfferID = %q, want the existing id", result.OfferID)
	}
	if len(gateway.submitted) != 0 {
		t.Errorf("submitted %d quotes, want none", len(gateway.submitted))
	}
	if len(store.successes) != 0 {
		t.Errorf("recorded %d successes, want none", len(store.successes))
	}
}

func TestCreateOfferFailedStateBlocksRetry(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	store.appointments[id].OfferFailed = true
	gateway := &fakeGateway{}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want a conflict", err)
	}
	if len(gateway.submitted) != 0 {
		t.Errorf("submitted %d quotes, want none", len(gateway.submitted))
	}
}

func TestCreateOfferMissingMappingFailsBeforeCRM(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: nil}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want a precondition failure", err)
	}
	if len(gateway.submitted) != 0 {
		t.Errorf("submitted %d quotes, want none", len(gateway.submitted))
	}
	if len(store.failures) != 1 {
		t.Fatalf("recorded %d failures, want 1", len(store.failures))
	}
	failure := store.failures[0]
	if failure.countAttempt {
		t.Error("precondition failure counted as an attempt")
	}
	if !strings.Contains(failure.reason, "GM01") || !strings.Contains(failure.reason, "CHEV") {
		t.Errorf("reason = %q, want it to name both codes", failure.reason)
	}
}

func TestCreateOfferPreconditionsDoNotCountAttempts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(appt *domain.Appointment)
		want   string
	}{
		{
			name:   "missing package id",
			mutate: func(a *domain.Appointment) { a.PackageID = "" },
			want:   "package id",
		},
		{
			name:   "missing erp transaction id",
			mutate: func(a *domain.Appointment) { a.ERPTransactionID = "" },
			want:   "ERP transaction id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			directory := newFakeDirectory()
			id := seedStandard(store, directory)
			tt.mutate(store.appointments[id])
			engine := newTestEngine(store, &fakeGateway{}, &fakeResolver{mapping: &routing.Mapping{}}, directory)

			_, err := engine.CreateOffer(context.Background(), id)
			if apperr.GetKind(err) != apperr.KindPrecondition {
				t.Fatalf("err = %v, want a precondition failure", err)
			}
			if len(store.failures) != 1 {
				t.Fatalf("recorded %d failures, want 1", len(store.failures))
			}
			if store.failures[0].countAttempt {
				t.Error("precondition failure counted as an attempt")
			}
			if !strings.Contains(store.failures[0].reason, tt.want) {
				t.Errorf("reason = %q, want it to mention %q", store.failures[0].reason, tt.want)
			}
		})
	}
}

func TestCreateOfferNoBuyerIsPrecondition(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	// Customer exists but never got a CRM account.
	directory.byDocument[store.appointments[id].CustomerDocument].CRMInternalID = ""
	gateway := &fakeGateway{}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindPrecondition {
		t.Fatalf("err = %v, want a precondition failure", err)
	}
	if len(gateway.submitted) != 0 {
		t.Errorf("submitted %d quotes, want none", len(gateway.submitted))
	}
	if len(store.failures) != 1 || store.failures[0].countAttempt {
		t.Errorf("failures = %+v, want one uncounted entry", store.failures)
	}
}

func TestCreateOfferValidationErrorsFailStandardCustomers(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{confirmation: confirmationWith("",
		severity3("El precio no pudo determinarse."),
		severity3("Documento de referencia inválido."),
	)}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want an upstream failure", err)
	}
	if len(store.failures) != 1 {
		t.Fatalf("recorded %d failures, want exactly 1", len(store.failures))
	}
	failure := store.failures[0]
	if !failure.countAttempt {
		t.Error("validation failure did not count as an attempt")
	}
	if !strings.Contains(failure.reason, "El precio no pudo determinarse.") ||
		!strings.Contains(failure.reason, "Documento de referencia inválido.") {
		t.Errorf("reason = %q, want both notes concatenated", failure.reason)
	}
}

func TestCreateOfferMissingIDWithoutErrorsIsFailure(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{confirmation: confirmationWith("")}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want an upstream failure", err)
	}
	if len(store.failures) != 1 || !store.failures[0].countAttempt {
		t.Fatalf("failures = %+v, want one counted entry", store.failures)
	}
	if !strings.Contains(store.failures[0].reason, "no offer id") {
		t.Errorf("reason = %q, want it to mention the missing id", store.failures[0].reason)
	}
}

func TestCreateOfferTransportFaultKeepsCodeAndTransaction(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{submitErr: &soap.Fault{
		Code:          "SOAP:Server",
		Message:       "backend unavailable",
		TransactionID: "TX-42",
	}}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want an upstream failure", err)
	}
	reason := store.failures[0].reason
	if !strings.Contains(reason, "backend unavailable") ||
		!strings.Contains(reason, "SOAP:Server") ||
		!strings.Contains(reason, "TX-42") {
		t.Errorf("reason = %q, want the fault message, code and transaction id", reason)
	}
}

func TestCreateOfferGenericToleratesWhitelistedErrors(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := uuid.New()
	appt := standardAppointment(id)
	appt.Comments = "Revisar frenos"
	store.appointments[id] = appt
	store.extras[id] = []domain.AdditionalService{{Name: "Cambio de aceite"}, {Name: "Alineación"}}
	directory.byDocument[appt.CustomerDocument] = &customers.Customer{
		ID:            uuid.New(),
		CRMInternalID: genericAccountID,
	}
	gateway := &fakeGateway{confirmation: confirmationWith("",
		severity3("El vehículo no existe."),
		severity3("No se encontró la placa."),
	)}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	result, err := engine.CreateOffer(context.Background(), id)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if !result.Synthesized {
		t.Error("Synthesized = false, want a placeholder id")
	}
	if !strings.HasPrefix(result.OfferID, "WILDCARD-") {
		t.Errorf("OfferID = %q, want a WILDCARD placeholder", result.OfferID)
	}
	if len(store.successes) != 1 {
		t.Fatalf("recorded %d successes, want 1", len(store.successes))
	}
	if len(store.failures) != 0 {
		t.Errorf("recorded failures = %+v, want none", store.failures)
	}

	quote := gateway.submitted[0]
	if quote.BuyerParty.BusinessPartnerInternalID != genericAccountID {
		t.Errorf("buyer = %q, want the shared account", quote.BuyerParty.BusinessPartnerInternalID)
	}
	if len(quote.Items) != 0 {
		t.Errorf("generic quote carries %d structured items, want none", len(quote.Items))
	}
	if quote.Text == nil || quote.Text.ContentText != "Cambio de aceite / Alineación / Revisar frenos" {
		t.Errorf("quote text = %+v, want the concatenated services and comment", quote.Text)
	}
}

func TestCreateOfferGenericUnexpectedErrorStaysFatal(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := uuid.New()
	appt := standardAppointment(id)
	store.appointments[id] = appt
	directory.byDocument[appt.CustomerDocument] = &customers.Customer{
		ID:            uuid.New(),
		CRMInternalID: genericAccountID,
	}
	gateway := &fakeGateway{confirmation: confirmationWith("",
		severity3("El vehículo no existe."),
		severity3("El precio no pudo determinarse."),
	)}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	_, err := engine.CreateOffer(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want an upstream failure", err)
	}
	if len(store.failures) != 1 || !store.failures[0].countAttempt {
		t.Fatalf("failures = %+v, want one counted entry", store.failures)
	}
}

func TestCreateOfferBuyerOverriddenByVehicleOwner(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	appt := store.appointments[id]

	ownerID := uuid.New()
	directory.byID[ownerID] = &customers.Customer{ID: ownerID, CRMInternalID: "1000888"}
	directory.vehicles[appt.VehiclePlate] = &customers.Vehicle{
		ID:           uuid.New(),
		LicensePlate: appt.VehiclePlate,
		OwnerID:      &ownerID,
	}
	gateway := &fakeGateway{confirmation: confirmationWith("8000055555")}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	if _, err := engine.CreateOffer(context.Background(), id); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if got := gateway.submitted[0].BuyerParty.BusinessPartnerInternalID; got != "1000888" {
		t.Errorf("buyer = %q, want the vehicle owner's account", got)
	}
}

func TestCreateOfferBuyerOverriddenByCRMVehicleRecord(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{
		confirmation: confirmationWith("8000066666"),
		vehicleInfo:  crm.VehicleInfo{Found: true, ClientID: "1000999"},
	}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	if _, err := engine.CreateOffer(context.Background(), id); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if got := gateway.submitted[0].BuyerParty.BusinessPartnerInternalID; got != "1000999" {
		t.Errorf("buyer = %q, want the CRM vehicle's customer", got)
	}
}

func TestCreateOfferVehicleLookupFailureIsIgnored(t *testing.T) {
	store := newFakeStore()
	directory := newFakeDirectory()
	id := seedStandard(store, directory)
	gateway := &fakeGateway{
		confirmation: confirmationWith("8000077777"),
		vehicleErr:   errors.New("timeout"),
	}
	engine := newTestEngine(store, gateway, &fakeResolver{mapping: &routing.Mapping{}}, directory)

	if _, err := engine.CreateOffer(context.Background(), id); err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if got := gateway.submitted[0].BuyerParty.BusinessPartnerInternalID; got != "1000777" {
		t.Errorf("buyer = %q, want the original account kept", got)
	}
}

func TestBuildItemDefaults(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		want    crm.QuoteItem
	}{
		{
			name:    "service position carries work quantity and hours",
			product: domain.Product{ProductID: "MANT40K", PositionType: "P001", Quantity: 0, AltQuantity: 2.5, WorkTimeValue: 3},
			want: crm.QuoteItem{
				PositionType:    "P001",
				WorkQuantity:    "2.5",
				TheoreticalTime: "3",
			},
		},
		{
			name:    "material position gets defaults",
			product: domain.Product{ProductID: "FILTRO", Quantity: 2},
			want: crm.QuoteItem{
				PositionType:    "P009",
				WorkQuantity:    "0",
				TheoreticalTime: "0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := buildItem(tt.product, "PKG-40K")
			if item.PositionType != tt.want.PositionType {
				t.Errorf("PositionType = %q, want %q", item.PositionType, tt.want.PositionType)
			}
			if item.WorkQuantity != tt.want.WorkQuantity {
				t.Errorf("WorkQuantity = %q, want %q", item.WorkQuantity, tt.want.WorkQuantity)
			}
			if item.TheoreticalTime != tt.want.TheoreticalTime {
				t.Errorf("TheoreticalTime = %q, want %q", item.TheoreticalTime, tt.want.TheoreticalTime)
			}
			if item.PackageID != "PKG-40K" || item.PackageType != "Z1" {
				t.Errorf("package fields = %q/%q, want PKG-40K/Z1", item.PackageID, item.PackageType)
			}
		})
	}
}

func TestItemQuantityAndUnit(t *testing.T) {
	if got := itemQuantity(0); got != "1.0" {
		t.Errorf("itemQuantity(0) = %q, want 1.0", got)
	}
	if got := itemQuantity(3); got != "3" {
		t.Errorf("itemQuantity(3) = %q, want 3", got)
	}
	if got := itemUnitCode(domain.Product{UnitCode: "L"}); got != "L" {
		t.Errorf("explicit unit = %q, want L", got)
	}
	if got := itemUnitCode(domain.Product{PositionType: "P001"}); got != "HUR" {
		t.Errorf("service unit = %q, want HUR", got)
	}
	if got := itemUnitCode(domain.Product{}); got != "EA" {
		t.Errorf("material unit = %q, want EA", got)
	}
}

func TestGenericToleratesErrors(t *testing.T) {
	g := &genericStrategy{}
	tests := []struct {
		name   string
		errors []string
		want   bool
	}{
		{"empty list is not tolerated", nil, false},
		{"whitelisted only", []string{"El vehículo no existe.", "No se encontró la placa."}, true},
		{"lock contention by substring", []string{"Error: Locking object not possible for 8000012345"}, true},
		{"one unexpected note is fatal", []string{"El vehículo no existe.", "Precio inválido."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ToleratesErrors(tt.errors); got != tt.want {
				t.Errorf("ToleratesErrors(%v) = %v, want %v", tt.errors, got, tt.want)
			}
		})
	}
}
