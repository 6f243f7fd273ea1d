/*
scenarios.go - Preset calculations for demos and quick starts

PURPOSE:

	Provides ready-made inputs that show typical salaries under both
	commissions. Each preset is validated and computed on request, so it
	always reflects the loaded rate table.

AVAILABLE SCENARIOS:

	entry-officer-metro:  Level 10 officer in an X city
	entry-staff-small:    Level 1 staff in a Z city
	senior-officer:       Level 13 officer in a Y city
	extras-and-toggles:   Level 7 with extra allowances and deductions

USAGE VIA API:

	GET /api/scenarios
	GET /api/scenarios/entry-officer-metro

ADDING NEW SCENARIOS:
 1. Add an entry to defaultScenarios with ID, name, description
 2. Use a basic pay that is a cell of the chosen level

SEE ALSO:
  - handlers.go: ListScenarios, GetScenario handlers
  - paymatrix/matrix.csv: valid level and basic pay pairs
*/
package api

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
}

func intPtr(v int) *int {
	return &v
}

func defaultScenarios() []scenario {
	return []scenario{
		{ScenarioDTO{
			ID:          "entry-officer-metro",
			Name:        "Level 10 officer, X city",
			Description: "Direct-recruit officer at cell 3 posted in a metro with higher TA",
			Inputs: CalculateRequest{
				PayLevel:     "10",
				BasicPay:     59500,
				HRAClass:     "X",
				TACityType:   "higher",
				DAPercentage: intPtr(58),
			},
		}},
		{ScenarioDTO{
			ID:          "entry-staff-small",
			Name:        "Level 1 staff, Z city",
			Description: "Multi-tasking staff at cell 6 in a small town",
			Inputs: CalculateRequest{
				PayLevel:     "1",
				BasicPay:     20900,
				HRAClass:     "Z",
				TACityType:   "other",
				DAPercentage: intPtr(50),
			},
		}},
		{ScenarioDTO{
			ID:          "senior-officer",
			Name:        "Level 13 officer, Y city",
			Description: "Senior administrative grade at entry pay, income tax applies",
			Inputs: CalculateRequest{
				PayLevel:   "13",
				BasicPay:   123100,
				HRAClass:   "Y",
				TACityType: "higher",
			},
		}},
		{ScenarioDTO{
			ID:          "extras-and-toggles",
			Name:        "Level 7 with extras",
			Description: "Special duty allowance, GPF subscription and CGHS switched off",
			Inputs: CalculateRequest{
				PayLevel:   "7",
				BasicPay:   44900,
				HRAClass:   "Y",
				TACityType: "other",
				OtherAllowances: []LineItemDTO{
					{Name: "Special Duty Allowance", Amount: 2000},
				},
				OtherDeductions: []LineItemDTO{
					{Name: "GPF", Amount: 1500},
				},
				Exclude: []string{"cghs"},
			},
		}},
	}
}

func findScenario(list []scenario, id string) (scenario, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}
