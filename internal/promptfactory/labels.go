package promptfactory

// labelTranslations provides stable German display labels for the
// demographic attribute values, mirroring the original csv-backed
// TranslatorService (lang/de.csv) with a fixed table so rendering never
// depends on reading a file at prompt time. Unknown values fall back to
// the raw value, matching the original translator's behavior.
var labelTranslations = map[string]string{
	"male":         "männlich",
	"female":       "weiblich",
	"non-binary":   "divers",
	"single":       "ledig",
	"married":      "verheiratet",
	"divorced":     "geschieden",
	"widowed":      "verwitwet",
	"native":       "einheimisch",
	"immigrant":    "zugewandert",
	"refugee":      "geflüchtet",
	"none":         "konfessionslos",
	"christian":    "christlich",
	"muslim":       "muslimisch",
	"buddhist":     "buddhistisch",
	"hindu":        "hinduistisch",
	"jewish":       "jüdisch",
	"other":        "andere",
	"heterosexual": "heterosexuell",
	"homosexual":   "homosexuell",
	"bisexual":     "bisexuell",
}

// translate returns the stable display label for a raw attribute value, or
// the value itself when no translation is known.
func translate(value string) string {
	if label, ok := labelTranslations[value]; ok {
		return label
	}
	return value
}
