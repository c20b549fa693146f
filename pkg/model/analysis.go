package model

type PaceAnalysis struct {
	CarNumber             string  `json:"carNumber"`
	RegressionMean        float64 `json:"regressionMean"`
	ZScore                float64 `json:"zScore"`
	HeroLapFlag           bool    `json:"heroLapFlag"`
	FallingBackFlag       bool    `json:"fallingBackFlag"`
	SustainableTargetPace float64 `json:"sustainableTargetPace"`
	Trend                 string  `json:"trend"`
	Consistency           float64 `json:"consistency"`
	Recommendation        string  `json:"recommendation"`
}

type WeatherAnalysis struct {
	Current             WeatherSnapshot `json:"current"`
	TrackGripScore      float64         `json:"trackGripScore"`
	RiskLevel           string          `json:"riskLevel"`
	Notes               string          `json:"notes"`
	TireDegradationRate float64         `json:"tireDegradationRate"` // percent per lap
	Recommendations     []string        `json:"recommendations"`
}

type ComponentDetails struct {
	TireTemperature   float64 `json:"tireTemperature"`
	EngineTemperature float64 `json:"engineTemperature"`
	BrakeWear         float64 `json:"brakeWear"`
	FuelRemaining     float64 `json:"fuelRemaining"`
}

type EngineTireAnalysis struct {
	CarNumber           string           `json:"carNumber"`
	TireWear            float64          `json:"tireWear"`
	EngineHealth        float64          `json:"engineHealth"`
	RecommendedMode     string           `json:"recommendedMode"`
	RemainingTireLaps   int              `json:"remainingTireLaps"`
	RemainingEngineLaps int              `json:"remainingEngineLaps"`
	Warnings            []string         `json:"warnings"`
	Details             ComponentDetails `json:"details"`
}

type Biometrics struct {
	HeartRate       float64 `json:"heartRate"`
	HRV             float64 `json:"hrv"`
	RespirationRate float64 `json:"respirationRate"`
	SkinTemp        float64 `json:"skinTemp"`
	GSR             float64 `json:"gsr"`
}

type DriverStateAnalysis struct {
	DriverID        string     `json:"driverId"`
	CarNumber       string     `json:"carNumber"`
	Driver          string     `json:"driver"`
	FatigueScore    float64    `json:"fatigueScore"`
	StressLevel     string     `json:"stressLevel"`
	CognitiveLoad   string     `json:"cognitiveLoad"`
	PaceTrend       string     `json:"paceTrend,omitempty"`
	Biometrics      Biometrics `json:"biometrics"`
	Recommendations []string   `json:"recommendations"`
	AlertLevel      string     `json:"alertLevel"`
}

type OvertakingZone struct {
	Corner      string  `json:"corner" yaml:"corner"`
	Difficulty  string  `json:"difficulty" yaml:"difficulty"`
	SuccessRate float64 `json:"successRate" yaml:"successRate"`
}

type LeadChaseAnalysis struct {
	CarNumber               string           `json:"carNumber"`
	TargetCarNumber         string           `json:"targetCarNumber"`
	Position                int              `json:"position"`
	CurrentGapSec           float64          `json:"currentGapSec"`
	TargetGapSec            float64          `json:"targetGapSec"`
	LapsRemaining           int              `json:"lapsRemaining"`
	RequiredDeltaPerLap     float64          `json:"requiredDeltaPerLap"`
	Feasibility             string           `json:"feasibility"`
	OvertakingOpportunities []OvertakingZone `json:"overtakingOpportunities"`
	TacticalPlan            string           `json:"tacticalPlan"`
	RecommendedFocusCorners []string         `json:"recommendedFocusCorners"`
}

// CarAnalysis aggregates the agent outputs for one car at one lap tick.
// LeadChase is nil when catch-up analysis is not applicable.
type CarAnalysis struct {
	Car         CarSnapshot         `json:"car"`
	Pace        PaceAnalysis        `json:"paceAnalysis"`
	Weather     *WeatherAnalysis    `json:"weatherAnalysis,omitempty"`
	EngineTire  EngineTireAnalysis  `json:"engineTire"`
	DriverState DriverStateAnalysis `json:"driverState"`
	LeadChase   *LeadChaseAnalysis  `json:"leadChase"`
}

// TickResult holds the complete pipeline output for one lap tick.
type TickResult struct {
	SessionKey string          `json:"sessionKey"`
	CurrentLap int             `json:"currentLap"`
	TotalLaps  int             `json:"totalLaps"`
	Weather    WeatherAnalysis `json:"weather"`
	Cars       []CarAnalysis   `json:"cars"`
}

// CarByNumber returns the analysis of the given car or nil.
func (t *TickResult) CarByNumber(carNum string) *CarAnalysis {
	for i := range t.Cars {
		if t.Cars[i].Car.CarNumber == carNum {
			return &t.Cars[i]
		}
	}
	return nil
}
