package feeds

import (
	"fmt"
	"sort"
	"strings"
)

// FeedGroup identifies one upstream GTFS-realtime feed shared by a set of lines.
type FeedGroup string

const (
	Group123456S FeedGroup = "123456S"
	GroupNQRW    FeedGroup = "NQRW"
	GroupBDFM    FeedGroup = "BDFM"
	GroupACE     FeedGroup = "ACE"
	GroupJZ      FeedGroup = "JZ"
	GroupL       FeedGroup = "L"
	GroupG       FeedGroup = "G"
	Group7       FeedGroup = "7"
	GroupSIR     FeedGroup = "SIR"

	// DefaultGroup serves empty ids and any prefix missing from the table.
	DefaultGroup = Group123456S
)

// DefaultBaseURL is the MTA endpoint all feed paths are appended to.
const DefaultBaseURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/"

// feedPaths maps each group to its path below the base URL.
var feedPaths = map[FeedGroup]string{
	Group123456S: "nyct%2Fgtfs",
	GroupNQRW:    "nyct%2Fgtfs-nqrw",
	GroupBDFM:    "nyct%2Fgtfs-bdfm",
	GroupACE:     "nyct%2Fgtfs-ace",
	GroupJZ:      "nyct%2Fgtfs-jz",
	GroupL:       "nyct%2Fgtfs-l",
	GroupG:       "nyct%2Fgtfs-g",
	Group7:       "nyct%2Fgtfs-7",
	GroupSIR:     "nyct%2Fgtfs-si",
}

// AlertsPath is the subway service alerts feed below the base URL.
const AlertsPath = "camsys%2Fsubway-alerts"

// stationPrefixToGroup is keyed by the first character of a station id.
var stationPrefixToGroup = map[byte]FeedGroup{
	'1': Group123456S,
	'2': Group123456S,
	'3': Group123456S,
	'4': Group123456S,
	'5': Group123456S,
	'6': Group123456S,
	'7': Group7,
	'A': GroupACE,
	'E': GroupACE,
	'H': GroupACE, // Rockaway shuttle rides the ACE feed
	'B': GroupBDFM,
	'D': GroupBDFM,
	'F': GroupBDFM,
	'R': GroupNQRW,
	'N': GroupNQRW,
	'Q': GroupNQRW,
	'G': GroupG,
	'J': GroupJZ,
	'M': GroupJZ,
	'L': GroupL,
	'S': GroupSIR,
}

// ResolveFeedGroup maps a station id to the feed group that carries its predictions.
// It never fails: unknown or empty ids resolve to DefaultGroup.
func ResolveFeedGroup(stationID string) FeedGroup {
	if stationID == "" {
		return DefaultGroup
	}
	if group, ok := stationPrefixToGroup[stationID[0]]; ok {
		return group
	}
	return DefaultGroup
}

// FeedURL joins the group's path onto baseURL.
func FeedURL(baseURL string, group FeedGroup) (string, error) {
	path, ok := feedPaths[group]
	if !ok {
		return "", fmt.Errorf("no feed path for group %q", group)
	}
	return joinURL(baseURL, path), nil
}

// AlertsURL joins the alerts feed path onto baseURL.
func AlertsURL(baseURL string) string {
	return joinURL(baseURL, AlertsPath)
}

// Groups returns every known feed group in a stable order.
func Groups() []FeedGroup {
	groups := make([]FeedGroup, 0, len(feedPaths))
	for g := range feedPaths {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}

func joinURL(baseURL, path string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + path
}
