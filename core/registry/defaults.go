package registry

import "github.com/kilianp07/civicdispatch/core/model"

// DefaultTemplate is the complaint letter used by the built-in targets.
const DefaultTemplate = "Subject: Civic Issue Report - {category}\n\n" +
	"Dear Municipal Corporation,\n\n" +
	"I am reporting a civic issue in your jurisdiction.\n\n" +
	"Issue Details:\n" +
	"- Category: {category}\n" +
	"- Title: {title}\n" +
	"- Description: {description}\n" +
	"- Location: {location}\n" +
	"- Reported by: {reporter}\n\n" +
	"Please take necessary action to address this issue.\n\n" +
	"Thank you,\n{reporter}"

func municipal(id, name string, lat, lng float64, email, phone, website, jurisdiction string) model.DispatchTarget {
	return model.DispatchTarget{
		ID:                id,
		DisplayName:       name,
		Location:          model.GeoPoint{Lat: lat, Lng: lng},
		ContactEmail:      email,
		ContactPhone:      phone,
		WebsiteURL:        website,
		JurisdictionLabel: jurisdiction,
		CoveredCategories: model.AllCategories(),
		MessageTemplate:   DefaultTemplate,
	}
}

// DefaultTargets lists the municipal corporations of the major Indian cities.
func DefaultTargets() []model.DispatchTarget {
	return []model.DispatchTarget{
		municipal("mumbai", "Brihanmumbai Municipal Corporation", 19.0760, 72.8777,
			"complaints@mcgm.gov.in", "022-24937747", "https://portal.mcgm.gov.in", "Mumbai Metropolitan Region"),
		municipal("delhi", "Municipal Corporation of Delhi", 28.7041, 77.1025,
			"complaints@mcdonline.gov.in", "011-23438200", "https://mcdonline.gov.in", "Delhi"),
		municipal("bangalore", "Bruhat Bengaluru Mahanagara Palike", 12.9716, 77.5946,
			"complaints@bbmp.gov.in", "080-22221188", "https://bbmp.gov.in", "Bengaluru"),
		municipal("chennai", "Greater Chennai Corporation", 13.0827, 80.2707,
			"complaints@chennaicorporation.gov.in", "044-25384520", "https://chennaicorporation.gov.in", "Chennai"),
		municipal("hyderabad", "Greater Hyderabad Municipal Corporation", 17.3850, 78.4867,
			"complaints@ghmc.gov.in", "040-21111111", "https://ghmc.gov.in", "Hyderabad"),
		municipal("pune", "Pune Municipal Corporation", 18.5204, 73.8567,
			"complaints@punecorporation.org", "020-25501000", "https://punecorporation.org", "Pune"),
		municipal("ahmedabad", "Ahmedabad Municipal Corporation", 23.0225, 72.5714,
			"complaints@ahmedabadcity.gov.in", "079-25391800", "https://ahmedabadcity.gov.in", "Ahmedabad"),
		municipal("kolkata", "Kolkata Municipal Corporation", 22.5726, 88.3639,
			"complaints@kmcgov.in", "033-22431111", "https://kmcgov.in", "Kolkata"),
	}
}

// Default returns a registry of DefaultTargets.
func Default() *Registry { return MustNew(DefaultTargets()) }
