// Package domain holds the shared types that flow between the store,
// normalizer, filter engine, resolver, emitter and queue processor.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VehicleType is the closed set of vehicle conditions the filter engine
// and order resolver reason about.
type VehicleType string

const (
	VehicleTypeNew       VehicleType = "new"
	VehicleTypeUsed      VehicleType = "used"
	VehicleTypeCertified VehicleType = "certified"
	VehicleTypeUnknown   VehicleType = "unknown"
)

// RawVehicle is a single scraped or uploaded inventory row, retained
// unmodified for audit once written.
type RawVehicle struct {
	VIN           string           `json:"vin"`
	Stock         string           `json:"stock"`
	Year          *int             `json:"year,omitempty"`
	Make          string           `json:"make"`
	Model         string           `json:"model"`
	Trim          string           `json:"trim,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Mileage       *int             `json:"mileage,omitempty"`
	VehicleType   VehicleType      `json:"vehicle_type"`
	ExteriorColor string           `json:"exterior_color,omitempty"`
	Location      string           `json:"location"`
	VehicleURL    string           `json:"vehicle_url,omitempty"`
	ImportID      string           `json:"import_id"`
	TimeScraped   time.Time        `json:"time_scraped"`
}

// Vehicle is the canonical normalized representation keyed by (VIN, Location).
type Vehicle struct {
	VIN              string           `json:"vin"`
	Location         string           `json:"location"`
	Stock            string           `json:"stock"`
	Year             *int             `json:"year,omitempty"`
	Make             string           `json:"make"`
	Model            string           `json:"model"`
	Trim             string           `json:"trim,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	Mileage          *int             `json:"mileage,omitempty"`
	VehicleType      VehicleType      `json:"vehicle_type"`
	ExteriorColor    string           `json:"exterior_color,omitempty"`
	VehicleURL       string           `json:"vehicle_url,omitempty"`
	PriceFormatted   string           `json:"price_formatted"`
	MileageFormatted string           `json:"mileage_formatted"`
	FirstScraped     time.Time        `json:"first_scraped"`
	LastScraped      time.Time        `json:"last_scraped"`
	ScrapeCount      int              `json:"scrape_count"`
	Incomplete       bool             `json:"incomplete"`
	ImportID         string           `json:"import_id"`
}

// NormalizeWarning documents a problem encountered while normalizing a row.
// Normalize never errors; it annotates instead.
type NormalizeWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FilterRules is the closed, enumerated struct backing §4.4. Unknown keys
// from a persisted config are preserved in Extra but never acted on.
type FilterRules struct {
	ExcludeConditions []VehicleType    `json:"exclude_conditions,omitempty"`
	RequireStock      bool             `json:"require_stock,omitempty"`
	MinPrice          *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice          *decimal.Decimal `json:"max_price,omitempty"`
	MinYear           *int             `json:"min_year,omitempty"`
	MaxYear           *int             `json:"max_year,omitempty"`
	ExcludeMakes      []string         `json:"exclude_makes,omitempty"`
	IncludeOnlyMakes  []string         `json:"include_only_makes,omitempty"`
	ExcludeModels     []string         `json:"exclude_models,omitempty"`
	Extra             map[string]any   `json:"-"`
}

// TemplateType is the closed set of print templates the emitter supports.
type TemplateType string

const (
	TemplateWindshield    TemplateType = "windshield"
	TemplateWindowSticker TemplateType = "window_sticker"
	TemplateBuyersGuide   TemplateType = "buyers_guide"
)

// OutputRules configures how the emitter lays out a dealership's CSV.
type OutputRules struct {
	TemplateType TemplateType `json:"template_type"`
	Fields       []string     `json:"fields,omitempty"`
	SortBy       string       `json:"sort_by,omitempty"`
	URLTemplate  string       `json:"url_template"`            // "{vin}" substituted
	PayloadField string       `json:"payload_field,omitempty"` // "vin" or "stock"
	// SizeByType maps a vehicle condition to the print size it requires.
	// Every included vehicle in one run must resolve to the same size
	// (§4.6 "static-size constraint"); an empty map means every vehicle
	// shares the implicit "Standard" size and the constraint can't trip.
	SizeByType map[VehicleType]string `json:"size_by_type,omitempty"`
}

// DealershipConfig is the per-dealership configuration record.
type DealershipConfig struct {
	Name         string      `json:"name"`
	IsActive     bool        `json:"is_active"`
	FilterRules  FilterRules `json:"filtering_rules"`
	OutputRules  OutputRules `json:"output_rules"`
	QROutputPath string      `json:"qr_output_path"`
}

// OrderType is the closed set of VIN log entry kinds.
type OrderType string

const (
	OrderTypeBaseline OrderType = "BASELINE"
	OrderTypeCAO      OrderType = "CAO"
	OrderTypeList     OrderType = "LIST"
)

// VINLogEntry records one processing event for a VIN at a dealership.
type VINLogEntry struct {
	ID            int64       `json:"id"`
	Dealership    string      `json:"dealership"`
	VIN           string      `json:"vin"`
	OrderNumber   string      `json:"order_number"`
	ProcessedDate time.Time   `json:"processed_date"`
	OrderType     OrderType   `json:"order_type"`
	VehicleType   VehicleType `json:"vehicle_type"`
}

// ImportSource is the closed set of manifest origins.
type ImportSource string

const (
	ImportSourceScrape    ImportSource = "scrape"
	ImportSourceCSVUpload ImportSource = "csv_upload"
)

// ManifestStatus is the closed set of import manifest lifecycle states.
type ManifestStatus string

const (
	ManifestActive   ManifestStatus = "active"
	ManifestArchived ManifestStatus = "archived"
)

// ImportManifest tracks one ingest batch. At most one is Active per system.
type ImportManifest struct {
	ImportID     string         `json:"import_id"`
	ImportDate   time.Time      `json:"import_date"`
	ImportSource ImportSource   `json:"import_source"`
	FileName     string         `json:"file_name,omitempty"`
	Status       ManifestStatus `json:"status"`
	VehicleCount int            `json:"vehicle_count"`
	Dealerships  []string       `json:"dealerships,omitempty"`
}

// OrderMode is the closed set of resolver modes.
type OrderMode string

const (
	ModeCAO  OrderMode = "CAO"
	ModeList OrderMode = "LIST"
)

// RunStatus is the closed set of order run outcomes.
type RunStatus string

const (
	RunStatusSucceeded         RunStatus = "SUCCEEDED"
	RunStatusFilesEmittedNoLog RunStatus = "FILES_EMITTED_NO_LOG"
	RunStatusFailed            RunStatus = "FAILED"
)

// OrderRun is the immutable record of one emitter invocation.
type OrderRun struct {
	RunID        string       `json:"run_id"`
	Dealership   string       `json:"dealership"`
	Mode         OrderMode    `json:"mode"`
	TemplateType TemplateType `json:"template_type"`
	CreatedAt    time.Time    `json:"created_at"`
	VehicleCount int          `json:"vehicle_count"`
	CSVPath      string       `json:"csv_path"`
	QRDir        string       `json:"qr_dir"`
	Status       RunStatus    `json:"status"`
	DryRun       bool         `json:"dry_run"`
}

// ResolveAction is the decision the resolver reaches for one candidate VIN.
type ResolveAction string

const (
	ActionInclude ResolveAction = "include"
	ActionSkip    ResolveAction = "skip"
)

// ResolveReason names which rule in §4.5 produced the decision, or a
// filter-rejection / invalid-vin reason.
type ResolveReason string

const (
	ReasonBaseline         ResolveReason = "baseline"
	ReasonSameDayDuplicate ResolveReason = "same_day_duplicate"
	ReasonRecentUnchanged  ResolveReason = "recent_unchanged"
	ReasonCrossDealership  ResolveReason = "cross_dealership_move"
	ReasonStatusChange     ResolveReason = "status_change"
	ReasonFirstTime        ResolveReason = "first_time"
	ReasonInvalidVIN       ResolveReason = "invalid_vin"
	ReasonFilteredPrefix   ResolveReason = "filtered:"
	ReasonNotInInventory   ResolveReason = "not_in_inventory"
)

// Classification is one row of the resolver's audit table.
type Classification struct {
	VIN    string        `json:"vin"`
	Action ResolveAction `json:"action"`
	Reason ResolveReason `json:"reason"`
}

// Resolution is the Order Resolver's output, consumed by the Emitter.
type Resolution struct {
	Dealership      string           `json:"dealership"`
	Mode            OrderMode        `json:"mode"`
	Included        []Vehicle        `json:"included"`
	Missing         []string         `json:"missing,omitempty"` // LIST mode only
	Classifications []Classification `json:"classifications"`
}

// Pagination mirrors the teacher's list-query envelope.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PaginatedResponse wraps any list payload with pagination metadata.
type PaginatedResponse[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// APIResponse is the generic envelope used by handlers that don't need a
// more specific response shape.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScraperEvent is one structured progress event emitted by the orchestrator.
type ScraperEvent struct {
	Type          string    `json:"type"` // session_start, scraper_start, scraper_progress, scraper_complete, session_complete
	SessionID     string    `json:"session_id"`
	Adapter       string    `json:"adapter,omitempty"`
	Index         int       `json:"index,omitempty"`
	TotalHint     *int      `json:"total_hint,omitempty"`
	VehiclesSoFar int       `json:"vehicles_so_far,omitempty"`
	ErrorsSoFar   int       `json:"errors_so_far,omitempty"`
	Status        string    `json:"status,omitempty"`
	Success       bool      `json:"success,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	DataClass     string    `json:"data_class,omitempty"` // "real" | "fallback", adapter-defined
	Timestamp     time.Time `json:"timestamp"`
}

// ScraperAdapterRun is the persisted outcome of one adapter within a session.
type ScraperAdapterRun struct {
	SessionID     string    `json:"session_id"`
	Adapter       string    `json:"adapter"`
	Dealership    string    `json:"dealership"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	VehicleCount  int       `json:"vehicle_count"`
	DataClass     string    `json:"data_class,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ScraperSession is the persisted outcome of one orchestrator run.
type ScraperSession struct {
	SessionID    string              `json:"session_id"`
	ImportID     string              `json:"import_id"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  time.Time           `json:"completed_at"`
	VehicleCount int                 `json:"vehicle_count"`
	Adapters     []ScraperAdapterRun `json:"adapters"`
}

// JobStatus is the closed set of queue processor job states.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job is one unit of work given to the queue processor.
type Job struct {
	Dealership     string       `json:"dealership"`
	Mode           OrderMode    `json:"mode"`
	TemplateType   TemplateType `json:"template_type"`
	VINs           []string     `json:"vins,omitempty"` // LIST mode input
	SkipVINLogging bool         `json:"skip_vin_logging,omitempty"`
	// Quantity is the operator-specified N each included vehicle expands
	// into in the printed CSV (§4.6 item 2). Zero means 1.
	Quantity int `json:"quantity,omitempty"`
}

// JobResult is the outcome of one queued job.
type JobResult struct {
	Dealership   string    `json:"dealership"`
	Status       JobStatus `json:"status"`
	Success      bool      `json:"success"`
	VehicleCount int       `json:"vehicle_count"`
	CSVPath      string    `json:"csv_path,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	Error        string    `json:"error,omitempty"`
}
