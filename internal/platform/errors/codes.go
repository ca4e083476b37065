package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation indicates a semantic rule failure; the command was
	// rejected and no state changed.
	CodeValidation Code = "VALIDATION"
	// CodeBlocked indicates a pending input gate is open and the command is
	// not an input resolution or cancellation.
	CodeBlocked Code = "BLOCKED"
	// CodeNotYourTurn indicates a turn-legality failure.
	CodeNotYourTurn Code = "NOT_YOUR_TURN"
	// CodeNotAuthorized indicates the issuing player may not act for the
	// addressed entity.
	CodeNotAuthorized Code = "NOT_AUTHORIZED"
	// CodeDuplicateEvent indicates the journal rejected an append because an
	// identical event already exists.
	CodeDuplicateEvent Code = "DUPLICATE_EVENT"
	// CodeStorage indicates a journal-layer failure surfaced unchanged.
	CodeStorage Code = "STORAGE"
	// CodeReplayInconsistency indicates a fold hit an impossible state, which
	// means the journal is corrupt. Not recoverable in-process.
	CodeReplayInconsistency Code = "REPLAY_INCONSISTENCY"
	// CodeNotFound indicates a requested record is missing.
	CodeNotFound Code = "NOT_FOUND"

	// Scenario errors
	CodeScenarioIDRequired    Code = "SCENARIO_ID_REQUIRED"
	CodeScenarioNameEmpty     Code = "SCENARIO_NAME_EMPTY"
	CodeScenarioNotCreated    Code = "SCENARIO_NOT_CREATED"
	CodeScenarioAlreadyExists Code = "SCENARIO_ALREADY_EXISTS"

	// Entity errors
	CodeEntityNameEmpty       Code = "ENTITY_NAME_EMPTY"
	CodeEntityKindInvalid     Code = "ENTITY_KIND_INVALID"
	CodeEntityNotFound        Code = "ENTITY_NOT_FOUND"
	CodeEntityRetired         Code = "ENTITY_RETIRED"
	CodeEntityPubIDTaken      Code = "ENTITY_PUBID_TAKEN"
	CodeEntityParentNotFound  Code = "ENTITY_PARENT_NOT_FOUND"
	CodeEntityParentCycle     Code = "ENTITY_PARENT_CYCLE"
	CodeEntityParentSelf      Code = "ENTITY_PARENT_SELF"
	CodeEntityNoParent        Code = "ENTITY_NO_PARENT"
	CodeEntityControllerEmpty Code = "ENTITY_CONTROLLER_EMPTY"

	// Effect errors
	CodeEffectNameEmpty       Code = "EFFECT_NAME_EMPTY"
	CodeEffectTargetEmpty     Code = "EFFECT_TARGET_EMPTY"
	CodeEffectSourceNotFound  Code = "EFFECT_SOURCE_NOT_FOUND"
	CodeEffectDurationInvalid Code = "EFFECT_DURATION_INVALID"
	CodeEffectNotFound        Code = "EFFECT_NOT_FOUND"
	CodeEffectAlreadyRemoved  Code = "EFFECT_ALREADY_REMOVED"

	// Input errors
	CodeInputAlreadyPending Code = "INPUT_ALREADY_PENDING"
	CodeInputNonePending    Code = "INPUT_NONE_PENDING"
	CodeInputPromptEmpty    Code = "INPUT_PROMPT_EMPTY"
	CodeInputIDMismatch     Code = "INPUT_ID_MISMATCH"

	// Timeline errors
	CodeNothingToUndo Code = "NOTHING_TO_UNDO"
	CodeNothingToRedo Code = "NOTHING_TO_REDO"

	// Round/turn errors
	CodeRoundAlreadyActive  Code = "ROUND_ALREADY_ACTIVE"
	CodeRoundNotActive      Code = "ROUND_NOT_ACTIVE"
	CodeRoundNoParticipants Code = "ROUND_NO_PARTICIPANTS"
	CodeTurnNotActive       Code = "TURN_NOT_ACTIVE"
	CodeTurnNotHeld         Code = "TURN_NOT_HELD"
	CodeTurnStillActive     Code = "TURN_STILL_ACTIVE"
	CodeTurnAlreadyDone     Code = "TURN_ALREADY_DONE"
	CodeTurnNotParticipant  Code = "TURN_NOT_PARTICIPANT"
	CodeTurnNoneEligible    Code = "TURN_NONE_ELIGIBLE"
)
