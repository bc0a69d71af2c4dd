package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jgarciagalvez/car-finder-ai-sub000/models"
)

const (
	translateSystemPrompt = `You translate Polish vehicle listings into English. Reply with a JSON object only: {"description": "<full English translation of the listing description>", "features": ["<notable feature>", ...]}. Extract features from the description and equipment list. No commentary outside the JSON.`

	sanitySystemPrompt = `You audit vehicle listings for inconsistencies between the structured parameters and the free-text description (mileage, year, engine, accident history, ownership claims). Reply with a short plain-text report. If everything is consistent, say so in one sentence.`

	fitScoreSystemPrompt = `You score how well a vehicle listing fits a buyer's stated criteria. Reply with a JSON object only: {"score": <number 0-10>}. 10 is a perfect fit.`

	mechanicSystemPrompt = `You are an experienced mechanic. Given a vehicle's make, model, year, engine and mileage, write a concise plain-text report of known issues for that generation and drivetrain, what to inspect before buying, and expected upcoming maintenance.`

	prioritySystemPrompt = `You triage vehicle listings for a buyer. Considering the personal fit score, the market value comparison, the data sanity check and the price, reply with a JSON object only: {"rating": <number 0-10>, "summary": "<one or two sentences on why>"}. 10 means contact the seller today.`
)

func translateUserPrompt(v *models.VehicleRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n\nDescription (HTML):\n%s\n", v.SourceTitle, v.SourceDescriptionHTML)
	if len(v.SourceEquipment) > 0 {
		sb.WriteString("\nEquipment:\n")
		sb.WriteString(formatEquipment(v.SourceEquipment))
	}
	return sb.String()
}

func sanityUserPrompt(v *models.VehicleRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Parameters:\n%s\n", formatParams(v.SourceParameters))
	fmt.Fprintf(&sb, "Year: %d, Mileage: %d km, Price: %.0f PLN\n", v.Year, v.Mileage, v.PricePLN)
	fmt.Fprintf(&sb, "\nDescription:\n%s\n", descriptionOf(v))
	return sb.String()
}

func fitScoreUserPrompt(v *models.VehicleRecord, criteria string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Buyer criteria:\n%s\n\n", criteria)
	fmt.Fprintf(&sb, "Listing: %s (%d, %d km, %.0f EUR)\n", v.Title, v.Year, v.Mileage, v.PriceEUR)
	fmt.Fprintf(&sb, "Parameters:\n%s\n", formatParams(v.SourceParameters))
	fmt.Fprintf(&sb, "\nDescription:\n%s\n", descriptionOf(v))
	return sb.String()
}

func mechanicUserPrompt(v *models.VehicleRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vehicle: %s, year %d, mileage %d km\n", v.Title, v.Year, v.Mileage)
	fmt.Fprintf(&sb, "Parameters:\n%s\n", formatParams(v.SourceParameters))
	return sb.String()
}

func priorityUserPrompt(v *models.VehicleRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Listing: %s (%d, %d km, %.0f EUR)\n", v.Title, v.Year, v.Mileage, v.PriceEUR)
	if v.PersonalFitScore != nil {
		fmt.Fprintf(&sb, "Personal fit score: %.1f/10\n", *v.PersonalFitScore)
	}
	if v.MarketValueScore != nil {
		fmt.Fprintf(&sb, "Market value: %s\n", *v.MarketValueScore)
	}
	if v.AIDataSanityCheck != nil {
		fmt.Fprintf(&sb, "Data sanity check:\n%s\n", *v.AIDataSanityCheck)
	}
	return sb.String()
}

// descriptionOf prefers the translated description, falling back to the raw
// scraped HTML when translation has not run yet.
func descriptionOf(v *models.VehicleRecord) string {
	if v.Description != nil && *v.Description != "" {
		return *v.Description
	}
	return v.SourceDescriptionHTML
}

func formatParams(params models.Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, params[k])
	}
	return sb.String()
}

func formatEquipment(equipment models.Equipment) string {
	categories := make([]string, 0, len(equipment))
	for c := range equipment {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	var sb strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s: %s\n", c, strings.Join(equipment[c], ", "))
	}
	return sb.String()
}
