package domain

// Project phases (fase).
const (
	PhaseAnalysis   = "ANALISIS"
	PhasePublished  = "PUBLICADO"
	PhaseInProgress = "EN_PROGRESO"
	PhaseCompleted  = "COMPLETADO"
	PhaseCancelled  = "CANCELADO"
)

// Legacy coarse project status (estado), mirrored from the phase.
const (
	StatusPending    = "pendiente"
	StatusInProgress = "en_proceso"
	StatusCompleted  = "completado"
	StatusCancelled  = "cancelado"
)

// Sub-task states.
const (
	SubtaskPending    = "PENDIENTE"
	SubtaskAssigned   = "ASIGNADA"
	SubtaskInProgress = "EN_PROGRESO"
	SubtaskInReview   = "EN_REVISION"
	SubtaskCompleted  = "COMPLETADO"
	SubtaskRejected   = "RECHAZADA"
	SubtaskCancelled  = "CANCELADO"
)

// Priorities.
const (
	PriorityHigh   = "ALTA"
	PriorityMedium = "MEDIA"
	PriorityLow    = "BAJA"
)

// Work request states.
const (
	RequestPending  = "PENDIENTE"
	RequestAccepted = "ACEPTADA"
	RequestRejected = "RECHAZADA"
)

// Responses a client may give to a work request.
const (
	ActionAccept = "ACEPTAR"
	ActionReject = "RECHAZAR"
)

// Conversation emitters and types.
const (
	EmitterClient = "CLIENTE"
	EmitterVendor = "VENDEDOR"
	EmitterAI     = "IA"

	ConversationAnalysis = "ANALISIS"
	ConversationProject  = "PROYECTO"
)

// TimeLayout is RFC3339 with a fixed nine-digit fraction, so stored
// timestamps sort as text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SpecialtyOther marks a project whose specialty is not yet known.
const SpecialtyOther = "OTRO"

type Project struct {
	ID                 int64    `json:"id"`
	ClientID           int64    `json:"cliente_id"`
	VendorID           *int64   `json:"vendedor_id,omitempty"`
	Title              string   `json:"titulo"`
	Description        string   `json:"descripcion"`
	Specialty          string   `json:"especialidad"`
	Status             string   `json:"estado" enum:"pendiente,en_proceso,completado,cancelado"`
	Phase              string   `json:"fase" enum:"ANALISIS,PUBLICADO,EN_PROGRESO,COMPLETADO,CANCELADO"`
	UserStory          string   `json:"historia_usuario,omitempty"`
	AcceptanceCriteria []string `json:"criterios_aceptacion"`
	TotalSubtasks      int      `json:"total_subtareas"`
	CompletedSubtasks  int      `json:"subtareas_completadas"`
	Progress           int      `json:"progreso"`
	Budget             float64  `json:"presupuesto"`
	Paid               float64  `json:"pagado"`
	EstimatedDays      int      `json:"tiempo_estimado_dias"`
	CompletedAt        *string  `json:"fecha_completado,omitempty" format:"date-time"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
}

type Turn struct {
	ID            int64          `json:"id"`
	ProjectID     int64          `json:"proyecto_id"`
	ClientID      int64          `json:"cliente_id"`
	Type          string         `json:"tipo" enum:"ANALISIS,PROYECTO"`
	Emitter       string         `json:"emisor" enum:"CLIENTE,VENDEDOR,IA"`
	ParticipantID *int64         `json:"participante_id,omitempty"`
	Message       string         `json:"mensaje"`
	Metadata      map[string]any `json:"metadatos,omitempty"`
	TS            string         `json:"ts" format:"date-time"`
}

type Subtask struct {
	ID            int64    `json:"id"`
	ProjectID     int64    `json:"proyecto_id"`
	Code          string   `json:"codigo"`
	Title         string   `json:"titulo"`
	Description   string   `json:"descripcion"`
	Specialty     string   `json:"especialidad"`
	VendorID      *int64   `json:"vendedor_id,omitempty"`
	Status        string   `json:"estado" enum:"PENDIENTE,ASIGNADA,EN_PROGRESO,EN_REVISION,COMPLETADO,RECHAZADA,CANCELADO"`
	Priority      string   `json:"prioridad" enum:"ALTA,MEDIA,BAJA"`
	Budget        float64  `json:"presupuesto"`
	Paid          float64  `json:"pagado"`
	EstimateHours int      `json:"estimacion_horas"`
	Dependencies  []string `json:"dependencias"`
	AssignedAt    *string  `json:"fecha_asignacion,omitempty" format:"date-time"`
	StartedAt     *string  `json:"fecha_inicio,omitempty" format:"date-time"`
	CompletedAt   *string  `json:"fecha_completado,omitempty" format:"date-time"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

// AnalysisRecord is an insert-only snapshot of a completed decomposition.
type AnalysisRecord struct {
	ID              int64    `json:"id"`
	ProjectID       int64    `json:"proyecto_id"`
	Version         int      `json:"version"`
	PayloadJSON     string   `json:"analisis"`
	Specialties     []string `json:"especialidades"`
	EstimatedBudget float64  `json:"presupuesto_estimado"`
	EstimatedDays   int      `json:"tiempo_estimado_dias"`
	Completed       bool     `json:"completado"`
	CreatedAt       string   `json:"created_at" format:"date-time"`
}

type WorkRequest struct {
	ID           int64   `json:"id"`
	SubtaskID    int64   `json:"subtarea_id"`
	VendorID     int64   `json:"vendedor_id"`
	Status       string  `json:"estado" enum:"PENDIENTE,ACEPTADA,RECHAZADA"`
	Message      string  `json:"mensaje,omitempty"`
	RejectReason string  `json:"motivo_rechazo,omitempty"`
	RequestedAt  string  `json:"fecha_solicitud" format:"date-time"`
	RespondedAt  *string `json:"fecha_respuesta,omitempty" format:"date-time"`
}

// Vendor holds the marketplace data the core reads about a vendor.
// SpecialtiesRaw is the stored text; Specialties is its parsed, canonical form.
type Vendor struct {
	ID             int64    `json:"id"`
	Name           string   `json:"nombre"`
	Email          string   `json:"correo"`
	SpecialtiesRaw string   `json:"-"`
	Specialties    []string `json:"especialidades"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  *int64 `json:"proyecto_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
