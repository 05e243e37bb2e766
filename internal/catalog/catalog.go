// Package catalog holds the fixed per-class texts shown next to a diagnosis.
package catalog

import (
	"strings"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

// UnknownRemedy is returned for labels outside model.Labels.
const UnknownRemedy = "The disease was not recognized. Please consult a certified agricultural extension officer for guidance."

var remedies = [model.NumClasses]string{
	"1. Remove and safely destroy infected plants to prevent spread.\n" +
		"2. Apply copper-based bactericides as recommended.\n" +
		"3. Ensure proper spacing and good drainage to reduce humidity.\n" +
		"4. Practice crop rotation to minimize disease buildup.",

	"1. Use certified disease-free planting material.\n" +
		"2. Control whitefly populations, the primary virus vector.\n" +
		"3. Monitor plants regularly for early symptoms.\n" +
		"4. Implement proper field sanitation and crop rotation.",

	"1. Remove infected leaves and plants to reduce viral spread.\n" +
		"2. Monitor whitefly populations and apply organic or approved controls.\n" +
		"3. Maintain healthy soil with organic mulch and balanced nutrients.\n" +
		"4. Use resistant varieties if available.",

	"1. Plant resistant or tolerant cassava varieties.\n" +
		"2. Remove and destroy severely infected plants.\n" +
		"3. Control whiteflies to reduce virus transmission.\n" +
		"4. Practice proper spacing and crop rotation to limit disease.",

	"Maintain good agricultural practices:\n" +
		"- Proper soil preparation and fertilization.\n" +
		"- Adequate spacing and irrigation.\n" +
		"- Regular monitoring for pests and diseases.\n" +
		"- Use certified clean planting material.",
}

var abbreviations = [model.NumClasses]string{"CBB", "CBSD", "CGM", "CMD", "Healthy"}

// Tips are general farming recommendations.
var Tips = []string{
	"Rotate crops every 2-3 years to prevent disease buildup.",
	"Use disease-resistant cassava varieties for better yield.",
	"Monitor plants regularly with leaf scans.",
	"Apply organic fertilizers to boost plant health.",
	"Control whitefly vectors to prevent Cassava Mosaic Disease.",
}

// Remedy returns the treatment advice for label.
func Remedy(label string) string {
	if i := model.Labels.Index(label); i >= 0 {
		return remedies[i]
	}
	return UnknownRemedy
}

// Abbreviation returns the short name used in charts and compact listings.
// Unknown labels are shortened to the initials of their words.
func Abbreviation(label string) string {
	if i := model.Labels.Index(label); i >= 0 {
		return abbreviations[i]
	}
	var b strings.Builder
	for _, word := range strings.Fields(label) {
		b.WriteByte(word[0])
	}
	if b.Len() > 0 {
		return b.String()
	}
	if len(label) > 3 {
		return label[:3]
	}
	return label
}

// Tip returns a tip chosen by n, wrapping around the list.
func Tip(n int) string {
	if n < 0 {
		n = -n
	}
	return Tips[n%len(Tips)]
}
