package ferry

import (
	"github.com/xkilldash9x/pilot/internal/catalog"
)

func ferryTuples() catalog.Agent {
	return catalog.Agent{
		Name:        "ferry_tuples",
		Page:        SearchResultPage,
		Description: "List of ferries on the search result page; each tuple shows the operator, timings and fare.",
		Functions: web(
			catalog.Locator("ferryTupleByFerryName",
				"Ferry tuple by ferry or operator name; ferryOccurence is the position among ferries with the same name (default 1).",
				"(//*[@data-autoid='inventoryList']//*[contains(@class,'travelsName_') and text()='{ferryName}']"+
					"//ancestor::*[contains(@class,'tupleWrapper_')])[{ferryOccurence}]",
				"ferryName", "ferryOccurence").WithNextRef(TimeSelectionPage),
		),
	}
}

const modify = "//*[@data-autoid='modifySearch']"

func modifyLocator(name, doc, suffix string, params ...string) catalog.Function {
	return catalog.Locator(name, doc, "("+modify+suffix, params...)
}

func topHeader() catalog.Agent {
	back := catalog.Locator("back_navigation_button", "Navigates back to the home page.",
		"//*[@data-autoid='topNavContainer']//*[contains(@class,'actionButton_')]").WithNextRef(HomePage)

	mweb := []catalog.Function{
		back,
		catalog.Locator("modify_button", "Opens the search widget to modify journey details.",
			"(//*[@data-autoid='topNavContainer']//*[contains(@class,'modifyButton_')])[1]").WithNextRef(HomePage),
		catalog.Locator("close_modify_button", "Closes the opened search widget, leaving journey details unchanged.",
			"(//*[@data-autoid='bottom-sheet']//*[contains(@class,'actionButton_')])[1]").WithNextRef(SearchResultPage),
	}

	cal := calendar{
		header:  "(" + modify + "//*[contains(@class,'monthYear_')])[1]",
		forward: "(" + modify + "//*[contains(@class,'icon icon-arrow arrow_')])[2]",
		date:    "(" + modify + "//*[contains(@class,'date_')]/span[text()='{date}'])[1]",
	}
	dweb := []catalog.Function{
		back,
		modifyLocator("src", "Departure input; interactive only after from_input_section().",
			"//*[contains(@class,'labelCityWrapper_')])[1]"),
		modifyLocator("dest", "Arrival input; interactive only after to_input_section().",
			"//*[contains(@class,'labelCityWrapper_')])[2]"),
		modifyLocator("from_input_section", "Container to click before typing in src().",
			"//*[contains(@class,'labelCityWrapper_')])[1]"),
		modifyLocator("to_input_section", "Container to click before typing in dest().",
			"//*[contains(@class,'labelCityWrapper_')])[2]"),
		modifyLocator("citySuggestionsInDropDown",
			"Selects a location suggestion (1-based position) from the dropdown shown after typing in src() or dest().",
			"//*[contains(@class,'listHeader_')])[{position}]", "position"),
		modifyLocator("swap_locations_button", "Swaps the from and to locations.", "//*[contains(@class,'swapIcon_')])[1]"),
		modifyLocator("remove_return_date_button", "Clears the modified return date.",
			"//*[contains(@class,'removeReturnIcon_')])[1]"),
		modifyLocator("passenger_selection_section_opener", "Opens passenger selection to modify the counts.",
			"//*[contains(@class,'label_')])[last()]"),
		modifyLocator("passenger_selection_section_closer", "Closes passenger selection; nothing else can be done while it is open.",
			"//*[contains(@class,'paxWrapper_')]//button[contains(@class,'primaryButton_')])[1]"),
		modifyLocator("adult_decrease_button", "Decreases the adult passenger count.", "//*[contains(@class,'icon_')])[5]"),
		modifyLocator("adult_increase_button", "Increases the adult passenger count. One adult is added by default.",
			"//*[contains(@class,'icon_')])[6]"),
		modifyLocator("first_child_add_button", "Adds the first child passenger.", "//*[contains(@class,'addBtn_')])[1]"),
		modifyLocator("subsequent_child_add_button", "Adds further child passengers after the first.",
			"//*[contains(@class,'icon_')])[8]"),
		modifyLocator("child_decrease_button", "Decreases the child passenger count.", "//*[contains(@class,'icon_')])[7]"),
		modifyLocator("search_ferries_button", "Searches again with the modified details.",
			"//*[contains(@class,'primaryButton_')])[1]"),
		modifyLocator("departure_date_calendar", "Opens the calendar to modify the departure date.",
			"//*[contains(@class,'dojWrapper_')])[1]"),
		modifyLocator("return_date_calendar", "Opens the calendar to modify the return date.",
			"//*[contains(@class,'dojWrapper_')])[2]"),
	}
	dweb = append(dweb, cal.functions()...)

	return catalog.Agent{
		Name: "top_header",
		Page: SearchResultPage,
		Description: "Top of the search result page: journey details, navigation back to the home page and " +
			"options to modify the journey. Use it to modify journey details instead of going back home unless told otherwise.",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: mweb,
			catalog.PlatformDWeb: dweb,
		},
	}
}
