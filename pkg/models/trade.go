// Package models defines the entity shapes shared across the risk and
// approval engine: trades, check results, assessments and approval records.
package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voltex/riskflow/pkg/errors"
)

// TradeType identifies the market a trade belongs to.
type TradeType string

const (
	TradeTypeSpot      TradeType = "spot"
	TradeTypeContract  TradeType = "contract"
	TradeTypeAncillary TradeType = "ancillary"
	TradeTypeGreen     TradeType = "green"
)

// TradeTypes lists the closed set of supported trade types.
func TradeTypes() []TradeType {
	return []TradeType{TradeTypeSpot, TradeTypeContract, TradeTypeAncillary, TradeTypeGreen}
}

// TradeDirection is the side of a trade.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// ContractKind distinguishes mid/long-term contract flavours.
type ContractKind string

const (
	ContractFixed    ContractKind = "fixed"
	ContractFlexible ContractKind = "flexible"
	ContractIndexed  ContractKind = "indexed"
)

// AncillaryService is a grid ancillary service category.
type AncillaryService string

const (
	ServiceFrequency  AncillaryService = "frequency"
	ServiceReserve    AncillaryService = "reserve"
	ServiceVoltage    AncillaryService = "voltage"
	ServiceBlackstart AncillaryService = "blackstart"
)

// MinCapacity returns the minimum volume (MW) an ancillary service
// requires, zero for unknown services.
func (s AncillaryService) MinCapacity() decimal.Decimal {
	switch s {
	case ServiceFrequency:
		return decimal.NewFromInt(10)
	case ServiceReserve:
		return decimal.NewFromInt(50)
	case ServiceVoltage:
		return decimal.NewFromInt(20)
	case ServiceBlackstart:
		return decimal.NewFromInt(100)
	}
	return decimal.Zero
}

// CertificateType is a renewable certificate category.
type CertificateType string

const (
	CertificateWind    CertificateType = "wind"
	CertificateSolar   CertificateType = "solar"
	CertificateHydro   CertificateType = "hydro"
	CertificateBiomass CertificateType = "biomass"
)

// ContractDetails carries contract-trade specific attributes.
type ContractDetails struct {
	Kind            ContractKind    `json:"kind" validate:"required,oneof=fixed flexible indexed"`
	DurationDays    int             `json:"duration_days"`
	PerformanceBond decimal.Decimal `json:"performance_bond"`
}

// AncillaryDetails carries ancillary-service specific attributes.
type AncillaryDetails struct {
	Service          AncillaryService `json:"service" validate:"required,oneof=frequency reserve voltage blackstart"`
	ResponseTimeSecs int              `json:"response_time_secs"`
}

// GreenDetails carries green-certificate specific attributes.
type GreenDetails struct {
	Certificate    CertificateType `json:"certificate" validate:"required,oneof=wind solar hydro biomass"`
	SourceVerified bool            `json:"source_verified"`
	CarbonOffset   bool            `json:"carbon_offset"`
}

// TradeDetails is a tagged variant keyed by the trade's type. Exactly
// the field matching the type is set; the rest are nil.
type TradeDetails struct {
	Contract  *ContractDetails  `json:"contract,omitempty"`
	Ancillary *AncillaryDetails `json:"ancillary,omitempty"`
	Green     *GreenDetails     `json:"green,omitempty"`
}

// Trade is a proposed transaction submitted for risk review. It is
// immutable once constructed; TotalValue is computed exactly once and
// every downstream risk decision operates on this snapshot.
type Trade struct {
	ID          uuid.UUID       `json:"id" validate:"required"`
	Type        TradeType       `json:"type" validate:"required,oneof=spot contract ancillary green"`
	Direction   TradeDirection  `json:"direction" validate:"required,oneof=buy sell"`
	Volume      decimal.Decimal `json:"volume"`
	Price       decimal.Decimal `json:"price"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Period      string          `json:"period"`
	Details     TradeDetails    `json:"details"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// TradeParams is the caller-supplied input for NewTrade.
type TradeParams struct {
	Type      TradeType
	Direction TradeDirection
	Volume    decimal.Decimal
	Price     decimal.Decimal
	Period    string
	Details   TradeDetails
}

var validate = validator.New()

// NewTrade builds an immutable Trade from params, computing TotalValue
// and validating the input. Returns a Validation error when the input
// is malformed; a trade never enters risk assessment unvalidated.
func NewTrade(p TradeParams) (*Trade, error) {
	t := &Trade{
		ID:          uuid.New(),
		Type:        p.Type,
		Direction:   p.Direction,
		Volume:      p.Volume,
		Price:       p.Price,
		TotalValue:  p.Volume.Mul(p.Price),
		Period:      p.Period,
		Details:     p.Details,
		SubmittedAt: time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks structural and per-type invariants. Profile limits
// (volume bounds, price bands, allowed periods) are checked separately
// against the trading profile in effect.
func (t *Trade) Validate() error {
	var fields []errors.FieldError

	if err := validate.Struct(t); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				fields = append(fields, errors.NewFieldError(ve.Field(), "failed "+ve.Tag()+" constraint"))
			}
		} else {
			return errors.Wrap(errors.KindValidation, "trade validation", err)
		}
	}

	if !t.Volume.IsPositive() {
		fields = append(fields, errors.NewFieldError("volume", "must be positive"))
	}
	if !t.Price.IsPositive() {
		fields = append(fields, errors.NewFieldError("price", "must be positive"))
	}

	fields = append(fields, t.validateDetails()...)

	if len(fields) > 0 {
		return errors.Validation(fields...)
	}
	return nil
}

const (
	contractMinDurationDays = 30
	contractMaxDurationDays = 365
)

var contractMinBond = decimal.NewFromInt(50000)

func (t *Trade) validateDetails() []errors.FieldError {
	var fields []errors.FieldError

	switch t.Type {
	case TradeTypeSpot:
		if t.Details.Contract != nil || t.Details.Ancillary != nil || t.Details.Green != nil {
			fields = append(fields, errors.NewFieldError("details", "spot trades carry no type-specific details"))
		}
	case TradeTypeContract:
		d := t.Details.Contract
		if d == nil {
			fields = append(fields, errors.NewFieldError("details.contract", "required for contract trades"))
			break
		}
		if err := validate.Struct(d); err != nil {
			fields = append(fields, errors.NewFieldError("details.contract.kind", "unknown contract kind"))
		}
		if d.DurationDays < contractMinDurationDays || d.DurationDays > contractMaxDurationDays {
			fields = append(fields, errors.NewFieldError("details.contract.duration_days",
				"must be between 30 and 365 days"))
		}
		if d.PerformanceBond.LessThan(contractMinBond) {
			fields = append(fields, errors.NewFieldError("details.contract.performance_bond",
				"must be at least 50000"))
		}
	case TradeTypeAncillary:
		d := t.Details.Ancillary
		if d == nil {
			fields = append(fields, errors.NewFieldError("details.ancillary", "required for ancillary trades"))
			break
		}
		if err := validate.Struct(d); err != nil {
			fields = append(fields, errors.NewFieldError("details.ancillary.service", "unknown service type"))
		} else if t.Volume.LessThan(d.Service.MinCapacity()) {
			fields = append(fields, errors.NewFieldError("volume",
				"below minimum capacity for "+string(d.Service)+" service"))
		}
	case TradeTypeGreen:
		d := t.Details.Green
		if d == nil {
			fields = append(fields, errors.NewFieldError("details.green", "required for green trades"))
			break
		}
		if err := validate.Struct(d); err != nil {
			fields = append(fields, errors.NewFieldError("details.green.certificate", "unknown certificate type"))
		}
		if !d.SourceVerified {
			fields = append(fields, errors.NewFieldError("details.green.source_verified",
				"green trades require source verification"))
		}
	}

	return fields
}
