package diversity

import "github.com/jonesrussell/postpilot/internal/models"

// categoryKeywords drives topic classification. Order matters: the first
// category with a keyword hit wins, so the table is a slice, not a map.
var categoryKeywords = []struct {
	category models.Category
	keywords []string
}{
	{models.CategoryTechnology, []string{"ai", "software", "programming", "tech", "digital", "innovation"}},
	{models.CategoryBusiness, []string{"marketing", "startup", "entrepreneur", "finance", "strategy"}},
	{models.CategoryLifestyle, []string{"health", "fitness", "travel", "food", "wellness", "productivity"}},
	{models.CategoryEducation, []string{"learning", "skills", "training", "development", "course"}},
	{models.CategoryEntertainment, []string{"movies", "games", "music", "books", "culture"}},
	{models.CategoryNews, []string{"trends", "current", "breaking", "update", "latest"}},
}

// contentAngles are writing-variety phrases used when synthesizing a
// replacement topic.
var contentAngles = []string{
	"How-To Guide",
	"Trend Analysis",
	"Comparison Review",
	"Beginner's Guide",
	"Expert Tips",
	"Case Study",
	"Myth Busting",
	"Future Predictions",
	"Problem Solving",
	"Best Practices",
}

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "have": {}, "will": {}, "from": {},
	"they": {}, "know": {}, "want": {}, "been": {}, "good": {}, "much": {},
	"some": {}, "time": {}, "very": {}, "when": {}, "come": {}, "here": {},
	"just": {}, "like": {}, "long": {}, "make": {}, "many": {}, "over": {},
	"such": {}, "take": {}, "than": {}, "them": {}, "well": {}, "were": {},
	"what": {}, "your": {},
}

// seedKeywords returns the classifier keywords for a category, used when
// suggesting a topic from an underused category.
func seedKeywords(cat models.Category) []string {
	for _, entry := range categoryKeywords {
		if entry.category == cat {
			return entry.keywords
		}
	}
	return nil
}
