package speech

// MedicalPhrases boosts recognition likelihood for domain vocabulary that
// general models tend to mishear. Passed with every recognition request.
var MedicalPhrases = []string{
	"hypertension",
	"hyperlipidemia",
	"diabetes mellitus",
	"atrial fibrillation",
	"myocardial infarction",
	"angina",
	"asthma",
	"COPD",
	"pneumonia",
	"bronchitis",
	"gastroesophageal reflux",
	"hypothyroidism",
	"osteoarthritis",
	"rheumatoid arthritis",
	"migraine",
	"anemia",
	"lisinopril",
	"metformin",
	"atorvastatin",
	"amlodipine",
	"levothyroxine",
	"omeprazole",
	"albuterol",
	"metoprolol",
	"losartan",
	"gabapentin",
	"hydrochlorothiazide",
	"sertraline",
	"ibuprofen",
	"acetaminophen",
	"amoxicillin",
	"azithromycin",
	"prednisone",
	"warfarin",
	"apixaban",
	"insulin glargine",
	"milligrams",
	"twice daily",
	"blood pressure",
	"heart rate",
	"follow-up",
	"referral",
	"prescription",
	"dosage",
}
