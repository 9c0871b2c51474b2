package analysis

// Domains is the catalogue of technology domains offered by the dashboard.
// Any other non-empty domain is accepted as well.
var Domains = []string{
	"IoT Devices",
	"AI Systems",
	"Autonomous Vehicles",
	"Smart Home Appliances",
	"Medical Devices",
	"Other",
}
