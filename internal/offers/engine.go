package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/crm"
	"taller_portal_backend/internal/events"
	"taller_portal_backend/internal/routing"
	"taller_portal_backend/platform/apperr"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/soap"

	"github.com/google/uuid"
)

// CRMGateway is the slice of the CRM client the engine uses.
type CRMGateway interface {
	SubmitQuote(ctx context.Context, quote *crm.CustomerQuote) (*crm.QuoteConfirmation, error)
	LookupVehicle(ctx context.Context, plate string) (crm.VehicleInfo, error)
}

// MappingResolver resolves routing attributes. A (nil, nil) result means no
// mapping exists for the pair.
type MappingResolver interface {
	Resolve(ctx context.Context, centerCode, brandCode string) (*routing.Mapping, error)
}

// Store is the slice of the appointment repository the engine uses.
type Store interface {
	ItemSource
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	RecordOfferSuccess(ctx context.Context, id uuid.UUID, offerID string, createdAt time.Time) error
	RecordOfferFailure(ctx context.Context, id uuid.UUID, reason string, countAttempt bool) error
}

// Result is the successful outcome of one submission.
type Result struct {
	OfferID string
	// Synthesized marks a placeholder id recorded by the generic path when
	// the CRM returned only whitelisted errors and no real id.
	Synthesized bool
}

// Engine builds and submits one offer per appointment. Two outcomes:
// success with an offer id, or a recorded failure that stays terminal until
// an operator clears the flag.
type Engine struct {
	store     Store
	gateway   CRMGateway
	resolver  MappingResolver
	directory CustomerDirectory
	bus       events.Bus
	log       *logger.Logger
	genericID string
	now       func() time.Time
}

func NewEngine(store Store, gateway CRMGateway, resolver MappingResolver, directory CustomerDirectory, bus events.Bus, cfg config.CRMConfig, log *logger.Logger) *Engine {
	return &Engine{
		store:     store,
		gateway:   gateway,
		resolver:  resolver,
		directory: directory,
		bus:       bus,
		log:       log,
		genericID: cfg.GetGenericCustomerID(),
		now:       time.Now,
	}
}

// CreateOffer runs the full algorithm for one appointment. Idempotent: an
// appointment that already has an offer id returns it without touching the
// CRM, and a recorded failure is not retried until the flag is cleared.
func (e *Engine) CreateOffer(ctx context.Context, appointmentID uuid.UUID) (Result, error) {
	appt, err := e.store.GetByID(ctx, appointmentID)
	if err != nil {
		return Result{}, err
	}

	if appt.OfferID != "" {
		return Result{OfferID: appt.OfferID}, nil
	}
	if appt.OfferFailed {
		return Result{}, apperr.Conflict(
			"offer creation previously failed, waiting for operator retry")
	}

	// Preconditions fail fast, before any network call, and never count as
	// submission attempts.
	mapping, err := e.resolver.Resolve(ctx, appt.CenterCode, appt.BrandCode)
	if err != nil {
		return Result{}, err
	}
	if mapping == nil {
		return Result{}, e.failPrecondition(ctx, appt, fmt.Sprintf(
			"no routing mapping for center %s and brand %s", appt.CenterCode, appt.BrandCode))
	}
	if appt.PackageID == "" {
		return Result{}, e.failPrecondition(ctx, appt, "appointment has no package id")
	}
	if appt.ERPTransactionID == "" {
		return Result{}, e.failPrecondition(ctx, appt, "appointment has no ERP transaction id")
	}

	strategy := e.strategyFor(ctx, appt)

	buyer, err := strategy.ResolveBuyer(ctx, appt)
	if err != nil {
		if kindErr := (*apperr.Error)(nil); errors.As(err, &kindErr) && kindErr.Kind == apperr.KindPrecondition {
			return Result{}, e.failPrecondition(ctx, appt, kindErr.Message)
		}
		return Result{}, err
	}

	quote := buildQuote(appt, mapping, buyer)
	if err := strategy.Populate(ctx, appt, quote); err != nil {
		if kindErr := (*apperr.Error)(nil); errors.As(err, &kindErr) && kindErr.Kind == apperr.KindPrecondition {
			return Result{}, e.failPrecondition(ctx, appt, kindErr.Message)
		}
		return Result{}, err
	}

	e.log.Info("submitting offer",
		"appointmentId", appt.ID,
		"strategy", strategy.Name(),
		"buyer", buyer,
		"items", len(quote.Items),
		"salesOrg", mapping.SalesOrganizationID,
	)

	conf, err := e.gateway.SubmitQuote(ctx, quote)
	if err != nil {
		return Result{}, e.failSubmission(ctx, appt, transportFailureReason(err))
	}

	validationErrors := conf.ValidationErrors()
	if len(validationErrors) > 0 && !strategy.ToleratesErrors(validationErrors) {
		reason := "crm validation errors: " + strings.Join(validationErrors, "; ")
		return Result{}, e.failSubmission(ctx, appt, reason)
	}

	result := Result{OfferID: conf.OfferID()}
	if result.OfferID == "" {
		if len(validationErrors) == 0 || !strategy.ToleratesErrors(validationErrors) {
			// Success without a usable identifier would corrupt downstream
			// state; treat it as a failure.
			return Result{}, e.failSubmission(ctx, appt, "crm response carried no offer id")
		}
		result.OfferID = strategy.PlaceholderOfferID(appt, e.now())
		result.Synthesized = true
		e.log.Info("tolerated validation errors, recording placeholder offer",
			"appointmentId", appt.ID,
			"offerId", result.OfferID,
			"errors", strings.Join(validationErrors, "; "),
		)
	}

	if err := e.store.RecordOfferSuccess(ctx, appt.ID, result.OfferID, e.now()); err != nil {
		return Result{}, err
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.OfferCreated{
			BaseEvent:     events.NewBaseEvent(),
			AppointmentID: appt.ID,
			OfferID:       result.OfferID,
			Generic:       strategy.Name() == "generic",
		})
	}

	e.log.Info("offer created",
		"appointmentId", appt.ID,
		"offerId", result.OfferID,
		"synthesized", result.Synthesized,
	)
	return result, nil
}

// strategyFor selects the generic path when the booking customer's account
// is the shared placeholder, the standard path otherwise.
func (e *Engine) strategyFor(ctx context.Context, appt *domain.Appointment) SubmissionStrategy {
	customer, err := e.directory.GetCustomerByDocument(ctx, appt.CustomerDocument)
	if err == nil && customer.CRMInternalID == e.genericID {
		return &genericStrategy{buyerID: e.genericID, items: e.store}
	}
	return &standardStrategy{
		directory: e.directory,
		vehicles:  e.gateway,
		items:     e.store,
		log:       e.log,
	}
}

func buildQuote(appt *domain.Appointment, mapping *routing.Mapping, buyer string) *crm.CustomerQuote {
	express := "false"
	if appt.ExpressService {
		express = "true"
	}

	quote := &crm.CustomerQuote{
		ActionCode:           crm.ActionCreate,
		ProcessingTypeCode:   crm.ProcessingTypeQuote,
		Name:                 crm.LocalizedText{Value: "OFERTA", LanguageCode: "ES"},
		DocumentLanguageCode: "ES",
		BuyerParty:           crm.BuyerParty{BusinessPartnerInternalID: buyer},
		EmployeeResponsible:  crm.EmployeeRef{EmployeeID: crm.ResponsibleEmployee},
		SellerParty:          crm.OrgCentre{OrganisationalCentreID: crm.SellerCentreID},
		SalesUnitParty:       crm.OrgCentre{OrganisationalCentreID: mapping.SalesOrganizationID},
		BusinessArea: crm.BusinessArea{
			SalesOrganisationID:     mapping.SalesOrganizationID,
			SalesOfficeID:           mapping.SalesOfficeID,
			SalesGroupID:            mapping.SalesGroupID,
			DistributionChannelCode: mapping.DistributionChannelCode,
			DivisionCode:            mapping.DivisionCode,
		},
		DocumentReference: &crm.DocumentReference{
			ActionCode: crm.ActionCreate,
			UUID:       appt.ERPTransactionID,
			TypeCode:   crm.ReferenceTypeCode,
			RoleCode:   crm.ReferenceRoleCode,
		},
		SalesGroup:     mapping.SalesGroupID,
		CenterCode:     appt.CenterCode,
		Plate:          appt.VehiclePlate,
		FromPortal:     "X",
		ExpressService: express,
		Mileage:        "0",
	}
	return quote
}

// failPrecondition records a descriptive failure without counting an
// attempt: the CRM was never reached.
func (e *Engine) failPrecondition(ctx context.Context, appt *domain.Appointment, reason string) error {
	if err := e.store.RecordOfferFailure(ctx, appt.ID, reason, false); err != nil {
		e.log.Error("could not record offer precondition failure",
			"appointmentId", appt.ID, "error", err)
	}
	e.publishFailed(ctx, appt, reason)
	return apperr.Precondition(reason)
}

// failSubmission records a submission failure and counts the attempt.
func (e *Engine) failSubmission(ctx context.Context, appt *domain.Appointment, reason string) error {
	if err := e.store.RecordOfferFailure(ctx, appt.ID, reason, true); err != nil {
		e.log.Error("could not record offer failure",
			"appointmentId", appt.ID, "error", err)
	}
	e.publishFailed(ctx, appt, reason)
	return apperr.Upstream(reason)
}

func (e *Engine) publishFailed(ctx context.Context, appt *domain.Appointment, reason string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, events.OfferFailed{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		Reason:        reason,
	})
}

// transportFailureReason keeps the fault code and correlation id when the
// failure was a SOAP fault.
func transportFailureReason(err error) string {
	var fault *soap.Fault
	if errors.As(err, &fault) {
		reason := "crm fault: " + fault.Message
		if fault.Code != "" {
			reason += " (code " + fault.Code + ")"
		}
		if fault.TransactionID != "" {
			reason += " [transaction " + fault.TransactionID + "]"
		}
		return reason
	}
	return "crm transport failure: " + err.Error()
}
