package models

// Choices offered by the questionnaire screens. The first entry of each list is the
// empty placeholder shown before the visitor picks anything.

var QRLocations = []string{
	"",
	"Mezzi pubblici",
	"Posto di lavoro",
	"Spazio pubblico",
	"Cassetta della posta",
	"Macchina",
	"Università/Scuola",
	"Bar/Ristorante",
	"Centro commerciale",
	"Centro sportivo",
	"Altro",
}

var AgeRanges = []string{
	"",
	"< 18",
	"18-23",
	"24-29",
	"30-35",
	"36-40",
	"41-50",
	"51-60",
	"61-70",
	"Over 71",
}

var Genders = []string{"", "Maschio", "Femmina", "Altro"}

var EducationLevels = []string{
	"",
	"Scuola media",
	"Diploma superiore",
	"Laurea triennale",
	"Laurea magistrale",
	"Master/Dottorato",
}

var Provinces = []string{
	"", "Estero", "Agrigento", "Alessandria", "Ancona", "Aosta", "Arezzo", "Ascoli Piceno",
	"Asti", "Avellino", "Bari", "Barletta-Andria-Trani", "Belluno", "Benevento",
	"Bergamo", "Biella", "Bologna", "Bolzano", "Brescia", "Brindisi", "Cagliari",
	"Caltanissetta", "Campobasso", "Caserta", "Catania", "Catanzaro", "Chieti",
	"Como", "Cosenza", "Cremona", "Crotone", "Cuneo", "Enna", "Fermo", "Ferrara",
	"Firenze", "Foggia", "Forlì-Cesena", "Frosinone", "Genova", "Gorizia",
	"Grosseto", "Imperia", "Isernia", "L'Aquila", "La Spezia", "Latina", "Lecce",
	"Lecco", "Livorno", "Lodi", "Lucca", "Macerata", "Mantova", "Massa-Carrara",
	"Matera", "Messina", "Milano", "Modena", "Monza e Brianza", "Napoli", "Novara",
	"Nuoro", "Oristano", "Padova", "Palermo", "Parma", "Pavia", "Perugia",
	"Pesaro e Urbino", "Pescara", "Piacenza", "Pisa", "Pistoia", "Pordenone",
	"Potenza", "Prato", "Ragusa", "Ravenna", "Reggio Calabria", "Reggio Emilia",
	"Rieti", "Rimini", "Roma", "Rovigo", "Salerno", "Sassari", "Savona", "Siena",
	"Siracusa", "Sondrio", "Sud Sardegna", "Taranto", "Teramo", "Terni", "Torino",
	"Trapani", "Trento", "Treviso", "Trieste", "Udine", "Varese", "Venezia",
	"Verbano-Cusio-Ossola", "Vercelli", "Verona", "Vibo Valentia", "Vicenza",
	"Viterbo",
}

// Options groups every list for the options endpoint.
func Options() map[string][]string {
	return map[string][]string{
		"qrLocations":     QRLocations,
		"ageRanges":       AgeRanges,
		"genders":         Genders,
		"provinces":       Provinces,
		"educationLevels": EducationLevels,
	}
}
