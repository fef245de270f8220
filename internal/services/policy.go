package services

type Action string

const (
	ActionViewOwnProgress     Action = "viewOwnProgress"
	ActionViewPatientProgress Action = "viewPatientProgress"
	ActionSubmitProgress      Action = "submitProgress"
	ActionViewPlans           Action = "viewPlans"
	ActionCreateExercisePlan  Action = "createExercisePlan"
	ActionUpdateExercisePlan  Action = "updateExercisePlan"
	ActionCreateDietPlan      Action = "createDietPlan"
	ActionUpdateDietPlan      Action = "updateDietPlan"
	ActionListIdentities      Action = "listIdentities"
	ActionListPatients        Action = "listPatients"
	ActionDeleteIdentity      Action = "deleteIdentity"
)

// Actions lists every action the policy knows about.
var Actions = []Action{
	ActionViewOwnProgress,
	ActionViewPatientProgress,
	ActionSubmitProgress,
	ActionViewPlans,
	ActionCreateExercisePlan,
	ActionUpdateExercisePlan,
	ActionCreateDietPlan,
	ActionUpdateDietPlan,
	ActionListIdentities,
	ActionListPatients,
	ActionDeleteIdentity,
}

// rule decides one action for every role. Anything a rule does not
// explicitly return true for is denied.
type rule func(role Role, actingID, ownerID string) bool

var rules = map[Action]rule{
	ActionViewOwnProgress: func(role Role, actingID, ownerID string) bool {
		return role == RolePatient && isSelf(actingID, ownerID)
	},
	ActionSubmitProgress: func(role Role, actingID, ownerID string) bool {
		return role == RolePatient && isSelf(actingID, ownerID)
	},
	ActionViewPatientProgress: func(role Role, _, _ string) bool {
		switch role {
		case RoleDoctor, RoleNutritionist, RoleTrainer, RoleAdmin:
			return true
		}
		return false
	},
	ActionViewPlans: func(role Role, actingID, ownerID string) bool {
		switch role {
		case RolePatient:
			return isSelf(actingID, ownerID)
		case RoleDoctor, RoleNutritionist, RoleTrainer, RoleAdmin:
			return true
		}
		return false
	},
	ActionCreateExercisePlan: exerciseAuthors,
	ActionUpdateExercisePlan: exerciseAuthors,
	ActionCreateDietPlan:     dietAuthors,
	ActionUpdateDietPlan:     dietAuthors,
	ActionListIdentities: func(role Role, _, _ string) bool {
		return role == RoleAdmin
	},
	ActionListPatients: func(role Role, _, _ string) bool {
		switch role {
		case RoleDoctor, RoleNutritionist, RoleTrainer, RoleAdmin:
			return true
		}
		return false
	},
	ActionDeleteIdentity: func(role Role, actingID, targetID string) bool {
		return role == RoleAdmin && actingID != "" && actingID != targetID
	},
}

func exerciseAuthors(role Role, _, _ string) bool {
	switch role {
	case RoleDoctor, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

func dietAuthors(role Role, _, _ string) bool {
	switch role {
	case RoleDoctor, RoleNutritionist, RoleAdmin:
		return true
	}
	return false
}

func isSelf(actingID, ownerID string) bool {
	return actingID != "" && actingID == ownerID
}

// Can is the authorization decision for a role acting on a resource owned
// by targetOwnerID. Unknown roles and unknown actions are always denied.
func Can(role Role, action Action, targetOwnerID, actingID string) bool {
	if !role.Valid() {
		return false
	}
	r, ok := rules[action]
	if !ok {
		return false
	}
	return r(role, actingID, targetOwnerID)
}

// Authorize returns a forbidden error when the actor may not perform action.
func (a Actor) Authorize(action Action, targetOwnerID string) error {
	if !Can(a.Role, action, targetOwnerID, a.ID) {
		return NewForbiddenError("forbidden")
	}
	return nil
}
