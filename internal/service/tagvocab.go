package service

// tagVocabulary is the fixed set of tags relevant to environmental
// assessment project documents, matched against chunk content both by
// explicit substring and by embedding cosine similarity (C8, spec §4.6).
var tagVocabulary = []string{
	"AboriginalInterests", "AccessRoute", "AccidentsMalfunctions", "Acoustics",
	"AirQuality", "Amphibians", "AquaticResources", "AquaticUse", "Address",
	"BenthicInvertebrates", "Birds", "BorderDistance", "ClimateChange", "Coaxial",
	"Communities", "CommunityWellbeing", "Conditions", "ContactDetails", "Corridors",
	"Culture", "CulturalEffects", "CulturalSites", "Dates", "DisturbanceArea",
	"Diversity", "DrinkingWater", "EconEffects", "Economy", "Ecosystems",
	"EmployeePrograms", "Employment", "EmploymentIncome", "EnvEffects", "EnvOnProject",
	"FNAgreements", "FNCommunities", "FNInterests", "FNTerritories", "Finance",
	"FishHabitat", "FreshwaterFish", "GHG", "Geologic", "GovEngagement",
	"GreenhouseGas", "GWQuality", "GWQuantity", "Harvesting", "Health",
	"HealthEffects", "Heritage", "HeritageResources", "HousingAccommodation",
	"HumanHealth", "Income", "Infrastructure", "L&RUTradPurposes", "Labour",
	"LabourForce", "LandResourceUse", "LandUse", "Landmarks", "Licenses",
	"Location", "Mammals", "MarineMammals", "MarineResources", "MarineSediment",
	"MarineTransportUse", "MarineUse", "MarineWater", "Noise", "Objective",
	"OverheadCable", "Parks", "PersonalInfo", "PowerLine", "ProjectType",
	"ProponentAddress", "ProponentContact", "ProponentName", "PropertyValues",
	"ProtectedAreas", "PublicEngagement", "RarePlants", "Recreation",
	"RecreationSites", "ReserveLands", "ResourceUse", "Risks", "Roads",
	"SensitiveAreas", "ServicesInfrastructure", "SocialEffects", "SoilQuality",
	"SoilQuantity", "SurfWaterQuality", "SurfWaterQuantity", "Telecommunication",
	"TelephoneLine", "Terrain", "TransmissionLine", "TransmissionTower",
	"TransportationAccess", "TreatyLands", "Vegetation", "Vibration",
	"VisualQuality", "Waterbodies", "Wildlife", "WildlifeHabitat", "WorkforceDev",
}
