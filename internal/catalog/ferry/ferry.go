// Package ferry registers the ferry booking application's agents: the home
// page's line-of-business tabs and search widget, and the search result
// page's header and ferry list.
package ferry

import (
	"github.com/xkilldash9x/pilot/internal/catalog"
)

// Pages the ferry application exposes.
const (
	HomePage          = "home_page"
	SearchResultPage  = "search_result_page"
	TimeSelectionPage = "time_selection_page"
)

var pageDescriptions = map[string]string{
	HomePage: "Home page of the ferry booking application. A search widget with Source, Destination, " +
		"Departure date and Return date fields means this is the home page. A modify search option " +
		"on top of a search result page also counts as the home page.",
	SearchResultPage:  "Ferries available for the search criteria. A 'no ferries available' message may be shown instead.",
	TimeSelectionPage: "Time slots available for the selected ferry.",
}

// Register adds the helpers, every ferry agent and the page descriptions to r.
func Register(r *catalog.Registry) error {
	if err := catalog.RegisterHelpers(r); err != nil {
		return err
	}
	for _, a := range []catalog.Agent{lob(), searchWidget(), topHeader(), ferryTuples()} {
		if err := r.RegisterAgent(a); err != nil {
			return err
		}
	}
	for page, desc := range pageDescriptions {
		r.DescribePage(page, desc)
	}
	return nil
}

// NewRegistry returns a registry holding the full ferry catalog.
func NewRegistry() (*catalog.Registry, error) {
	r := catalog.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// web registers the same functions for both web channels.
func web(fns ...catalog.Function) map[catalog.Platform][]catalog.Function {
	return map[catalog.Platform][]catalog.Function{
		catalog.PlatformMWeb: fns,
		catalog.PlatformDWeb: fns,
	}
}
