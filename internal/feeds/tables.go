package feeds

import "subwayboard.app/internal/models"

// stationPrefixToLines lists the lines likely to serve a station, keyed by id prefix.
// It is a coarse guess used for alert filtering, not an authoritative service map.
var stationPrefixToLines = map[byte][]string{
	'1': {"1", "2", "3"},
	'2': {"2", "5"},
	'3': {"3"},
	'4': {"4"},
	'5': {"5"},
	'6': {"6"},
	'7': {"7"},
	'A': {"A", "C", "E"},
	'B': {"B", "D", "F", "M"},
	'D': {"B", "D", "F", "M"},
	'E': {"E"},
	'F': {"F"},
	'G': {"G"},
	'H': {"A", "S"},
	'J': {"J", "Z"},
	'L': {"L"},
	'M': {"M"},
	'N': {"N"},
	'Q': {"Q"},
	'R': {"N", "Q", "R", "W"},
	'S': {"SIR"},
}

// LinesForStation returns the likely lines for a station, or nil when unknown.
// The returned slice is a copy.
func LinesForStation(stationID string) []string {
	if stationID == "" {
		return nil
	}
	lines, ok := stationPrefixToLines[stationID[0]]
	if !ok {
		return nil
	}
	return append([]string(nil), lines...)
}

type lineDirection struct {
	line      string
	direction models.Direction
}

// terminals holds the terminal station name for each (line, direction).
var terminals = map[lineDirection]string{
	{"1", models.Northbound}: "Van Cortlandt Park-242 St",
	{"1", models.Southbound}: "South Ferry",
	{"2", models.Northbound}: "Wakefield-241 St",
	{"2", models.Southbound}: "Flatbush Av-Brooklyn College",
	{"3", models.Northbound}: "Harlem-148 St",
	{"3", models.Southbound}: "New Lots Av",
	{"4", models.Northbound}: "Woodlawn",
	{"4", models.Southbound}: "Crown Hts-Utica Av",
	{"5", models.Northbound}: "Eastchester-Dyre Av",
	{"5", models.Southbound}: "Flatbush Av-Brooklyn College",
	{"6", models.Northbound}: "Pelham Bay Park",
	{"6", models.Southbound}: "Brooklyn Bridge-City Hall",
	{"7", models.Northbound}: "Flushing-Main St",
	{"7", models.Southbound}: "34 St-Hudson Yards",
	{"A", models.Northbound}: "Inwood-207 St",
	{"A", models.Southbound}: "Far Rockaway",
	{"C", models.Northbound}: "168 St",
	{"C", models.Southbound}: "Euclid Av",
	{"E", models.Northbound}: "Jamaica Center",
	{"E", models.Southbound}: "World Trade Center",
	{"B", models.Northbound}: "Bedford Park Blvd",
	{"B", models.Southbound}: "Brighton Beach",
	{"D", models.Northbound}: "Norwood-205 St",
	{"D", models.Southbound}: "Coney Island-Stillwell Av",
	{"F", models.Northbound}: "Jamaica-179 St",
	{"F", models.Southbound}: "Coney Island-Stillwell Av",
	{"M", models.Northbound}: "Forest Hills-71 Av",
	{"M", models.Southbound}: "Middle Village-Metropolitan Av",
	{"N", models.Northbound}: "Astoria-Ditmars Blvd",
	{"N", models.Southbound}: "Coney Island-Stillwell Av",
	{"Q", models.Northbound}: "96 St",
	{"Q", models.Southbound}: "Coney Island-Stillwell Av",
	{"R", models.Northbound}: "Forest Hills-71 Av",
	{"R", models.Southbound}: "Bay Ridge-95 St",
	{"W", models.Northbound}: "Astoria-Ditmars Blvd",
	{"W", models.Southbound}: "Whitehall St",
	{"G", models.Northbound}: "Court Sq",
	{"G", models.Southbound}: "Church Av",
	{"J", models.Northbound}: "Jamaica Center",
	{"J", models.Southbound}: "Broad St",
	{"Z", models.Northbound}: "Jamaica Center",
	{"Z", models.Southbound}: "Broad St",
	{"L", models.Northbound}: "8 Av",
	{"L", models.Southbound}: "Canarsie-Rockaway Pkwy",
	{"SI", models.Northbound}: "St George",
	{"SI", models.Southbound}: "Tottenville",
}

// Destination returns the terminal name for a line heading in direction,
// or "" when the pair is not in the table.
func Destination(line string, direction models.Direction) string {
	return terminals[lineDirection{line: line, direction: direction}]
}
