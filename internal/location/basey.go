package location

import "basey-transport/internal/models"

// KilometerZero is the town-centre reference point.
const KilometerZero = "José Rizal Monument (Basey Center - KM 0)"

// baseyPlaces is the built-in table for Basey, Samar: poblacion barangays
// are urban, outlying barangays rural, tourist and civic sites landmarks.
var baseyPlaces = []models.Place{
	// Landmarks
	{Name: KilometerZero, Latitude: 11.2817, Longitude: 125.0683, Classification: models.Landmark},
	{Name: "Basey Municipal Hall", Latitude: 11.2822, Longitude: 125.0689, Classification: models.Landmark},
	{Name: "St. Michael the Archangel Parish Church", Latitude: 11.2811, Longitude: 125.0678, Classification: models.Landmark},
	{Name: "Basey Public Market", Latitude: 11.2806, Longitude: 125.0671, Classification: models.Landmark},
	{Name: "Sohoton Natural Bridge National Park", Latitude: 11.3589, Longitude: 125.1519, Classification: models.Landmark},
	{Name: "Sohoton Tourism Jump-off (Brgy. Buenavista)", Latitude: 11.3186, Longitude: 125.1024, Classification: models.Landmark},

	// Poblacion
	{Name: "Baybay", Latitude: 11.2829, Longitude: 125.0661, Classification: models.Urban},
	{Name: "Buscada", Latitude: 11.2843, Longitude: 125.0702, Classification: models.Urban},
	{Name: "Lawa-an", Latitude: 11.2795, Longitude: 125.0705, Classification: models.Urban},
	{Name: "Loyo", Latitude: 11.2789, Longitude: 125.0660, Classification: models.Urban},
	{Name: "Mercado", Latitude: 11.2812, Longitude: 125.0695, Classification: models.Urban},
	{Name: "Palaypay", Latitude: 11.2860, Longitude: 125.0680, Classification: models.Urban},
	{Name: "Sulod", Latitude: 11.2775, Longitude: 125.0688, Classification: models.Urban},

	// Outlying barangays
	{Name: "Amandayehan", Latitude: 11.2440, Longitude: 125.0215, Classification: models.Rural},
	{Name: "Anglit", Latitude: 11.3125, Longitude: 125.0856, Classification: models.Rural},
	{Name: "Bacubac", Latitude: 11.2952, Longitude: 125.0548, Classification: models.Rural},
	{Name: "Balante", Latitude: 11.3410, Longitude: 125.1205, Classification: models.Rural},
	{Name: "Buenavista", Latitude: 11.3190, Longitude: 125.1030, Classification: models.Rural},
	{Name: "Cancaiyas", Latitude: 11.3065, Longitude: 125.1388, Classification: models.Rural},
	{Name: "Catadman", Latitude: 11.2702, Longitude: 125.0910, Classification: models.Rural},
	{Name: "Cogon", Latitude: 11.2990, Longitude: 125.0825, Classification: models.Rural},
	{Name: "Dolongan", Latitude: 11.3522, Longitude: 125.1101, Classification: models.Rural},
	{Name: "Guirang", Latitude: 11.3702, Longitude: 125.1650, Classification: models.Rural},
	{Name: "Iba", Latitude: 11.2630, Longitude: 125.0505, Classification: models.Rural},
	{Name: "Mabini", Latitude: 11.2905, Longitude: 125.0968, Classification: models.Rural},
	{Name: "Magallanes", Latitude: 11.2555, Longitude: 125.0402, Classification: models.Rural},
	{Name: "New San Agustin", Latitude: 11.4050, Longitude: 125.1802, Classification: models.Rural},
	{Name: "Old San Agustin", Latitude: 11.3950, Longitude: 125.1720, Classification: models.Rural},
	{Name: "Palanyogon", Latitude: 11.4320, Longitude: 125.2210, Classification: models.Rural},
	{Name: "Roxas", Latitude: 11.2668, Longitude: 125.0760, Classification: models.Rural},
	{Name: "Salvacion", Latitude: 11.3260, Longitude: 125.1455, Classification: models.Rural},
	{Name: "San Antonio", Latitude: 11.3335, Longitude: 125.0925, Classification: models.Rural},
	{Name: "San Fernando", Latitude: 11.3035, Longitude: 125.0612, Classification: models.Rural},
	{Name: "Sawa", Latitude: 11.3795, Longitude: 125.1402, Classification: models.Rural},
	{Name: "Tinaogan", Latitude: 11.2360, Longitude: 125.0120, Classification: models.Rural},
	{Name: "Villa Aurora", Latitude: 11.3470, Longitude: 125.0990, Classification: models.Rural},
}

// Default returns a registry over the built-in Basey table.
func Default() *Registry {
	r, err := NewRegistry(baseyPlaces)
	if err != nil {
		panic("location: built-in table is invalid: " + err.Error())
	}
	return r
}
