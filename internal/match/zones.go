package match

type Controller string

const (
	ControllerWhite   Controller = "white"
	ControllerBlack   Controller = "black"
	ControllerNeutral Controller = "neutral"
)

type Zone struct {
	Name   string
	MinRow int
	MaxRow int
	MinCol int
	MaxCol int
}

func (z Zone) Contains(p Position) bool {
	return p.Row >= z.MinRow && p.Row <= z.MaxRow && p.Col >= z.MinCol && p.Col <= z.MaxCol
}

// Zones spans the four central ranks, split into left, centre and right.
var Zones = []Zone{
	{Name: "A", MinRow: 2, MaxRow: 5, MinCol: 0, MaxCol: 2},
	{Name: "B", MinRow: 2, MaxRow: 5, MinCol: 3, MaxCol: 4},
	{Name: "C", MinRow: 2, MaxRow: 5, MinCol: 5, MaxCol: 7},
}

type ZoneStatus struct {
	Zone       string     `json:"zone"`
	White      int        `json:"white"`
	Black      int        `json:"black"`
	Controller Controller `json:"controller"`
}

// ControllerFor applies the majority rule; ties, including 0-0, are neutral.
func ControllerFor(white, black int) Controller {
	switch {
	case white > black:
		return ControllerWhite
	case black > white:
		return ControllerBlack
	default:
		return ControllerNeutral
	}
}

func ZoneAt(p Position) (Zone, bool) {
	for _, z := range Zones {
		if z.Contains(p) {
			return z, true
		}
	}
	return Zone{}, false
}

func DeriveControl(board BoardGame) []ZoneStatus {
	out := make([]ZoneStatus, len(Zones))
	for i, z := range Zones {
		out[i].Zone = z.Name
		for _, pc := range board.Pieces {
			if !z.Contains(pc.Position) {
				continue
			}
			switch pc.Color {
			case TeamWhite:
				out[i].White++
			case TeamBlack:
				out[i].Black++
			}
		}
		out[i].Controller = ControllerFor(out[i].White, out[i].Black)
	}
	return out
}
