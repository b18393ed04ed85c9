package ferry

import (
	"github.com/xkilldash9x/pilot/internal/catalog"
)

func lob() catalog.Agent {
	return catalog.Agent{
		Name: "lob",
		Page: HomePage,
		Description: "Present at the top of the home page; chooses the line of business, e.g. Bus or Ferry. " +
			"Ferry is selected by default, so ferry tasks never need to select it again.",
		Functions: web(
			catalog.Locator("bus", "The bus line of business tab.",
				"(//*[@data-autoid='header']//*[contains(@class,'lobContainer_')])[1]"),
			catalog.Locator("ferry", "The ferry line of business tab (selected by default).",
				"(//*[@data-autoid='header']//*[contains(@class,'lobContainer_')])[2]"),
		),
	}
}

const widget = "//*[@data-autoid='searchWidget']"

func widgetLocator(name, doc, suffix string, params ...string) catalog.Function {
	return catalog.Locator(name, doc, "("+widget+suffix, params...)
}

func searchWidget() catalog.Agent {
	shared := []catalog.Function{
		widgetLocator("citySuggestionsInDropDown",
			"Selects a location suggestion (1-based position) from the dropdown shown after typing in src() or dest(). "+
				"Mandatory when the task says select the location; not used when it only says enter the location.",
			"//*[contains(@class,'listHeader_')])[{position}]", "position"),
		widgetLocator("clear_src", "Clears any text in the source input.", "//*[contains(@class,'icon-close')])[1]"),
		widgetLocator("swap_locations_button", "Swaps the from and to locations.", "//*[contains(@class,'swapIcon_')])[1]"),
		widgetLocator("remove_return_date_button", "Clears the selected return date.",
			"//*[contains(@class,'removeReturnIcon_')])[1]"),
		widgetLocator("adult_decrease_button", "Decreases the adult passenger count.", "//*[contains(@class,'icon_')])[5]"),
		widgetLocator("adult_increase_button", "Increases the adult passenger count. One adult is added by default.",
			"//*[contains(@class,'icon_')])[6]"),
		widgetLocator("first_child_add_button", "Adds the first child passenger. No child is added by default.",
			"//*[contains(@class,'addBtn_')])[1]"),
		widgetLocator("subsequent_child_add_button", "Adds further child passengers after the first.",
			"//*[contains(@class,'icon_')])[8]"),
		widgetLocator("child_decrease_button", "Decreases the child passenger count; shown once a child is added.",
			"//*[contains(@class,'icon_')])[7]"),
		widgetLocator("search_ferries_button", "Starts the ferry search.",
			"//*[contains(@class,'primaryButton_')])[1]").WithNextRef(SearchResultPage),
		widgetLocator("departure_date_calendar", "Opens the departure date calendar; shows the onward date once selected.",
			"//*[contains(@class,'dojWrapper_')])[1]"),
		widgetLocator("return_date_calendar", "Opens the return date calendar; shows the return date once selected.",
			"//*[contains(@class,'dojWrapper_')])[2]"),
	}

	mwebCal := calendar{
		header:  "(//*[@data-autoid='bottom-sheet']//*[contains(@class,'monthYear_')])[1]",
		forward: "(//*[@data-autoid='bottom-sheet']//*[contains(@class,'icon icon-arrow arrow_')])[2]",
		date:    "(//*[@data-autoid='bottom-sheet']//*[contains(@class,'date_')]/span[text()='{date}'])[1]",
	}
	dwebCal := calendar{
		header:  "(" + widget + "//*[contains(@class,'monthYear_')])[1]",
		forward: "(" + widget + "//*[contains(@class,'icon icon-arrow arrow_')])[2]",
		date:    "(" + widget + "//*[contains(@class,'date_')]/span[text()='{date}'])[1]",
	}

	mweb := append([]catalog.Function{
		widgetLocator("src", "Source location input inside the container opened by from_input_section().",
			"//*[contains(@class,'searchInput_')])[1]"),
		widgetLocator("dest", "Destination location input inside the container opened by to_input_section().",
			"//*[contains(@class,'searchInput_')])[1]"),
		widgetLocator("from_input_section", "Opens the container where the source location is entered.",
			"//*[contains(@class,'label_')])[1]"),
		widgetLocator("to_input_section", "Opens the container where the destination location is entered.",
			"//*[contains(@class,'label_')])[2]"),
		catalog.Locator("back_navigation_button",
			"Returns to the home page from the src() or dest() input without picking a suggestion.",
			widget+"//*[contains(@class,'icon-arrow_back')]"),
	}, shared...)
	mweb = append(mweb, mwebCal.functions()...)

	dweb := append([]catalog.Function{
		widgetLocator("src", "Source location input inside the container opened by from_input_section().",
			"//*[contains(@class,'labelCityWrapper_')])[1]"),
		widgetLocator("dest", "Destination location input inside the container opened by to_input_section().",
			"//*[contains(@class,'labelCityWrapper_')])[2]"),
		widgetLocator("from_input_section", "Opens the container where the source location is entered.",
			"//*[contains(@class,'labelCityWrapper_')])[1]"),
		widgetLocator("to_input_section", "Opens the container where the destination location is entered.",
			"//*[contains(@class,'labelCityWrapper_')])[2]"),
	}, shared...)
	dweb = append(dweb, dwebCal.functions()...)

	return catalog.Agent{
		Name: "search_widget",
		Page: HomePage,
		Description: "Search form on the home page: source and destination, departure and return dates, " +
			"passenger counts and the search button.",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: mweb,
			catalog.PlatformDWeb: dweb,
		},
	}
}
