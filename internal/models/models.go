package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Position is a player's listed position.
type Position string

const (
	PositionPG Position = "PG"
	PositionSG Position = "SG"
	PositionSF Position = "SF"
	PositionPF Position = "PF"
	PositionC  Position = "C"
)

// PositionBucket groups positions for defense-vs-position lookups.
type PositionBucket string

const (
	BucketGuard   PositionBucket = "G"
	BucketForward PositionBucket = "F"
	BucketCenter  PositionBucket = "C"
	BucketOther   PositionBucket = "OTHER"
)

// Bucket maps a listed position to its defense-vs-position bucket.
func (p Position) Bucket() PositionBucket {
	switch p {
	case PositionPG, PositionSG:
		return BucketGuard
	case PositionSF, PositionPF:
		return BucketForward
	case PositionC:
		return BucketCenter
	default:
		return BucketOther
	}
}

// StatKind identifies a defense-vs-position stat column.
type StatKind string

const (
	StatPoints   StatKind = "points"
	StatRebounds StatKind = "rebounds"
	StatAssists  StatKind = "assists"
)

// AvailabilityState is the current injury/availability status of a player.
type AvailabilityState string

const (
	StatusHealthy  AvailabilityState = "healthy"
	StatusDayToDay AvailabilityState = "day_to_day"
	StatusOut      AvailabilityState = "out"
)

// RunStatus is the lifecycle state of a projection run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

type Season struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	Current   bool      `gorm:"index;default:false" json:"current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Season) TableName() string {
	return "seasons"
}

type Team struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"uniqueIndex;not null" json:"name"`
	Abbreviation string `gorm:"uniqueIndex;not null" json:"abbreviation"`
}

func (Team) TableName() string {
	return "teams"
}

type Player struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	TeamID   uint     `gorm:"index" json:"team_id"`
	Team     *Team    `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Name     string   `gorm:"not null" json:"name"`
	Position Position `gorm:"type:varchar(4)" json:"position"`
}

func (Player) TableName() string {
	return "players"
}

type Game struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SeasonID      uint      `gorm:"index;not null" json:"season_id"`
	Date          time.Time `gorm:"index;not null" json:"date"`
	HomeTeamID    uint      `gorm:"not null" json:"home_team_id"`
	VisitorTeamID uint      `gorm:"not null" json:"visitor_team_id"`
	HomeTeam      *Team     `gorm:"foreignKey:HomeTeamID" json:"home_team,omitempty"`
	VisitorTeam   *Team     `gorm:"foreignKey:VisitorTeamID" json:"visitor_team,omitempty"`
}

func (Game) TableName() string {
	return "games"
}

// OpponentOf returns the opposing team id for a team in this game, and
// whether the team plays at home. The second team id is zero when the team
// is not part of the game.
func (g *Game) OpponentOf(teamID uint) (uint, bool) {
	switch teamID {
	case g.HomeTeamID:
		return g.VisitorTeamID, true
	case g.VisitorTeamID:
		return g.HomeTeamID, false
	}
	return 0, false
}

// GameLog is one player's recorded box score line in one past game.
// Immutable once written; owned by the ingestion pipeline.
type GameLog struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	GameID            uint      `gorm:"index;not null" json:"game_id"`
	PlayerID          uint      `gorm:"index;not null" json:"player_id"`
	TeamID            uint      `gorm:"index;not null" json:"team_id"`
	GameDate          time.Time `gorm:"index;not null" json:"game_date"`
	Minutes           float64   `json:"minutes"`
	Points            float64   `json:"points"`
	TotalRebounds     *float64  `json:"total_rebounds,omitempty"`
	OffensiveRebounds float64   `json:"offensive_rebounds"`
	DefensiveRebounds float64   `json:"defensive_rebounds"`
	Assists           float64   `json:"assists"`
	Threes            float64   `json:"threes"`
	UsagePct          float64   `json:"usage_pct"`
	ReboundPct        float64   `json:"rebound_pct"`
	AssistPct         float64   `json:"assist_pct"`
}

func (GameLog) TableName() string {
	return "box_scores"
}

// Rebounds returns total rebounds, falling back to the offensive plus
// defensive split when the total column is not populated.
func (gl *GameLog) Rebounds() float64 {
	if gl.TotalRebounds != nil {
		return *gl.TotalRebounds
	}
	return gl.OffensiveRebounds + gl.DefensiveRebounds
}

// Availability is the current injury report entry for a player.
type Availability struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	PlayerID   uint              `gorm:"uniqueIndex;not null" json:"player_id"`
	Status     AvailabilityState `gorm:"type:varchar(16);not null" json:"status"`
	Note       string            `json:"note"`
	LastUpdate time.Time         `json:"last_update"`
}

func (Availability) TableName() string {
	return "availabilities"
}

// DefenseRank is an opponent's defense-vs-position rank for one stat.
// Rank 1 is the stingiest defense, 30 the most generous.
type DefenseRank struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	TeamID   uint           `gorm:"index:idx_dvp,unique" json:"team_id"`
	SeasonID uint           `gorm:"index:idx_dvp,unique" json:"season_id"`
	Bucket   PositionBucket `gorm:"index:idx_dvp,unique;type:varchar(8)" json:"bucket"`
	Stat     StatKind       `gorm:"index:idx_dvp,unique;type:varchar(16)" json:"stat"`
	Rank     int            `gorm:"not null" json:"rank"`
}

func (DefenseRank) TableName() string {
	return "defense_vs_positions"
}

// TeamAdvancedStat carries a team's season-level efficiency context.
type TeamAdvancedStat struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	TeamID   uint    `gorm:"index:idx_team_adv,unique" json:"team_id"`
	SeasonID uint    `gorm:"index:idx_team_adv,unique" json:"season_id"`
	Pace     float64 `json:"pace"`
	OffRtg   float64 `json:"off_rtg"`
	DefRtg   float64 `json:"def_rtg"`
}

func (TeamAdvancedStat) TableName() string {
	return "team_advanced_stats"
}

// ProjectionRun is one batch of projections for a date and model version.
type ProjectionRun struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Date             time.Time  `gorm:"index:idx_run,unique;not null" json:"date"`
	ModelVersion     string     `gorm:"index:idx_run,unique;not null" json:"model_version"`
	Status           RunStatus  `gorm:"type:varchar(16);not null" json:"status"`
	Notes            string     `json:"notes"`
	ProjectionsCount int        `gorm:"default:0" json:"projections_count"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (ProjectionRun) TableName() string {
	return "projection_runs"
}

// Projection is the engine's primary output: one row per (date, player).
type Projection struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          uuid.UUID `gorm:"type:uuid;index;not null" json:"run_id"`
	Date           time.Time `gorm:"index:idx_projection,unique;not null" json:"date"`
	PlayerID       uint      `gorm:"index:idx_projection,unique;not null" json:"player_id"`
	TeamID         uint      `gorm:"index;not null" json:"team_id"`
	OpponentTeamID uint      `gorm:"not null" json:"opponent_team_id"`

	Position     Position          `gorm:"type:varchar(4)" json:"position"`
	InjuryStatus AvailabilityState `gorm:"type:varchar(16)" json:"injury_status"`

	ExpectedMinutes float64 `json:"expected_minutes"`
	UsagePct        float64 `json:"usage_pct"`
	ReboundPct      float64 `json:"rebound_pct"`
	AssistPct       float64 `json:"assist_pct"`

	DvpPtsMult float64 `json:"dvp_pts_mult"`
	DvpRebMult float64 `json:"dvp_reb_mult"`
	DvpAstMult float64 `json:"dvp_ast_mult"`

	ProjPoints   float64 `json:"proj_points"`
	ProjRebounds float64 `json:"proj_rebounds"`
	ProjAssists  float64 `json:"proj_assists"`
	ProjThrees   float64 `json:"proj_threes"`

	ProjPA  float64 `json:"proj_pa"`
	ProjPR  float64 `json:"proj_pr"`
	ProjRA  float64 `json:"proj_ra"`
	ProjPRA float64 `json:"proj_pra"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Projection) TableName() string {
	return "projections"
}

// FillCombos derives the combo stat columns from the base projections.
func (p *Projection) FillCombos() {
	p.ProjPA = p.ProjPoints + p.ProjAssists
	p.ProjPR = p.ProjPoints + p.ProjRebounds
	p.ProjRA = p.ProjRebounds + p.ProjAssists
	p.ProjPRA = p.ProjPoints + p.ProjRebounds + p.ProjAssists
}

// JSONMap is a JSON object column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(data, m)
}

// GameSimulation is one simulated outcome for a game, keyed uniquely by
// (date, game, model version).
type GameSimulation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Date          time.Time `gorm:"index:idx_game_sim,unique;not null" json:"date"`
	GameID        uint      `gorm:"index:idx_game_sim,unique;not null" json:"game_id"`
	ModelVersion  string    `gorm:"index:idx_game_sim,unique;not null" json:"model_version"`
	SeasonID      uint      `gorm:"index;not null" json:"season_id"`
	HomeTeamID    uint      `gorm:"not null" json:"home_team_id"`
	VisitorTeamID uint      `gorm:"not null" json:"visitor_team_id"`
	SimsCount     int       `gorm:"default:1" json:"sims_count"`

	HomePoints      float64 `json:"home_points"`
	VisitorPoints   float64 `json:"visitor_points"`
	HomeRebounds    float64 `json:"home_rebounds"`
	VisitorRebounds float64 `json:"visitor_rebounds"`
	HomeAssists     float64 `json:"home_assists"`
	VisitorAssists  float64 `json:"visitor_assists"`
	HomeThrees      float64 `json:"home_threes"`
	VisitorThrees   float64 `json:"visitor_threes"`

	HomeBaselinePoints      float64 `json:"home_baseline_points"`
	VisitorBaselinePoints   float64 `json:"visitor_baseline_points"`
	HomeBaselineRebounds    float64 `json:"home_baseline_rebounds"`
	VisitorBaselineRebounds float64 `json:"visitor_baseline_rebounds"`
	HomeBaselineAssists     float64 `json:"home_baseline_assists"`
	VisitorBaselineAssists  float64 `json:"visitor_baseline_assists"`
	HomeBaselineThrees      float64 `json:"home_baseline_threes"`
	VisitorBaselineThrees   float64 `json:"visitor_baseline_threes"`

	HomeScale    float64 `json:"home_scale"`
	VisitorScale float64 `json:"visitor_scale"`

	WinProbHome float64 `json:"win_prob_home"`

	Meta JSONMap `gorm:"type:jsonb" json:"meta"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GameSimulation) TableName() string {
	return "game_simulations"
}
