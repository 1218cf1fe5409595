package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Resources       map[string]int `json:"resources"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	CellSize   float64 `json:"cell_size"`
}

type CatalogDigests struct {
	Definitions DigestRef `json:"definitions"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client)
type CatalogMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	Digest          string `json:"digest"`
	Part            int    `json:"part"`
	TotalParts      int    `json:"total_parts"`
	Data            any    `json:"data"`
}

// Input kinds carried by INPUT.
const (
	InputPointer        = "POINTER"
	InputClick          = "CLICK"
	InputExit           = "EXIT"
	InputRotate         = "ROTATE"
	InputVariant        = "VARIANT"
	InputStartPlacement = "START_PLACEMENT"
	InputStartRemoving  = "START_REMOVING"
	InputStop           = "STOP"
)

// INPUT (client -> server)
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int64  `json:"seq,omitempty"`
	Kind            string `json:"kind"`

	// Pos is the pointer-resolved world position for POINTER and CLICK.
	Pos          *[3]float64 `json:"pos,omitempty"`
	DefinitionID *int        `json:"definition_id,omitempty"`
	// Direction is the quarter-turn step for ROTATE; zero means +1.
	Direction int `json:"direction,omitempty"`
}

// PREVIEW (server -> client), sent at most once per tick when the ghost changed.
type PreviewMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Active          bool       `json:"active"`
	Mode            string     `json:"mode"`
	DefinitionID    int        `json:"definition_id,omitempty"`
	Size            [2]int     `json:"size,omitempty"`
	Pos             [3]float64 `json:"pos"`
	Valid           bool       `json:"valid"`
	RotationDeg     int        `json:"rotation_deg"`
	Cells           [][2]int   `json:"cells"`
}

// RESULT (server -> client), one per INPUT except POINTER.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Seq             int64  `json:"seq,omitempty"`
	Kind            string `json:"kind"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Mode            string `json:"mode"`

	Placed   []EntityRef     `json:"placed,omitempty"`
	Removed  []EntityRef     `json:"removed,omitempty"`
	Charged  [][]interface{} `json:"charged,omitempty"`
	Refund   [][]interface{} `json:"refund,omitempty"`
	Released int             `json:"released,omitempty"`

	Resources map[string]int `json:"resources"`
	ZoneCount int            `json:"zone_count"`
}

type EntityRef struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	DefinitionID int    `json:"definition_id"`
	Kind         string `json:"kind"`
	Origin       [2]int `json:"origin"`
	Rotation     int    `json:"rotation"`
	Cells        int    `json:"cells"`
}

// STATUS (server -> client, and GET /v1/status)
type StatusMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	Mode            string         `json:"mode"`
	Clients         int            `json:"clients"`
	Entities        int            `json:"entities"`
	ZoneCount       int            `json:"zone_count"`
	Kinds           map[string]int `json:"kinds"`
	Resources       map[string]int `json:"resources"`
	Available       []int          `json:"available"`
}
