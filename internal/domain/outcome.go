package domain

// UserInsertionResult reports the get-or-create step of a registration.
// UserData is always the stored row: the freshly inserted one when Created,
// otherwise the row recorded on first contact.
type UserInsertionResult struct {
	Created  bool `json:"created"`
	UserData User `json:"user_data"`
}

// TemperatureInsertionResult reports the append step of a registration.
// Duplicates is true when the sender already had a reading on the same
// local calendar date; it is informational only.
type TemperatureInsertionResult struct {
	Duplicates   bool        `json:"duplicates"`
	BodyTempData Temperature `json:"body_temp_data"`
}

// RegistrationOutcome is the result of one successful registration.
type RegistrationOutcome struct {
	UserInsertion        UserInsertionResult        `json:"user_insertion_result"`
	TemperatureInsertion TemperatureInsertionResult `json:"temperature_insertion_result"`
}
