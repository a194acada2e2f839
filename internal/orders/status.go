package orders

type Status string

const (
	StatusNew           Status = "new"
	StatusInPreparation Status = "in_preparation"
	StatusReady         Status = "ready"
	StatusShipped       Status = "shipped"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInPreparation, StatusReady, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Linear happy path; cancelled is reachable from any non-terminal state.
var validNext = map[Status]map[Status]bool{
	StatusNew:           {StatusInPreparation: true, StatusCancelled: true},
	StatusInPreparation: {StatusReady: true, StatusCancelled: true},
	StatusReady:         {StatusShipped: true, StatusCancelled: true},
	StatusShipped:       {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:     {},
	StatusCancelled:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
