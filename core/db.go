package core

// DBOrdering is a single ORDER BY term. Field must be a vetted column name:
// it is interpolated into SQL verbatim, so callers bind user input against a
// whitelist before building one.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
