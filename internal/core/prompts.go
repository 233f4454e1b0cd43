package core

// prompts.go holds the natural-language instruction sets for the dialogue
// policy, keyed by locale. The state machine and tag contract are identical
// across locales; only the text differs.

// promptSet is one locale's full instruction set.
type promptSet struct {
	// system is the system prompt template: surgery type, stage word and the
	// asked-symptom list are interpolated.
	system         string
	stageAssessing string
	stageAsking    string
	noneWord       string
	unknownSurgery string

	// assessInstruction asks the model for a risk verdict with the inline tag
	// contract; askOneInstruction forces a single named question.
	assessInstruction string
	askOneInstruction string

	// Fixed texts returned without a completion call.
	escalationMessage string
	holdingMessage    string
	notConfigured     string
}

var promptSets = map[string]promptSet{
	"en": {
		system: `Medical assistant for post-surgery care. Surgery: %s.

CRITICAL RULES:
1. Ask ONLY ONE question per response - never ask multiple questions at once
2. Wait for patient's answer before asking the next question
3. Do NOT provide recommendations until all symptoms are assessed
4. Be empathetic and professional

Dialogue flow:
- Symptoms to ask (ONE at a time): pain, swelling, bleeding, infection, delayed healing
- After EACH answer, analyze if it indicates HIGH RISK (severe/urgent) or continue asking
- Only after all 5 symptoms asked, provide full risk assessment and recommendations

Current stage: %s
Symptoms already asked: %s
`,
		stageAssessing: "ASSESSMENT",
		stageAsking:    "ASKING QUESTIONS",
		noneWord:       "None",
		unknownSurgery: "Unknown",

		assessInstruction: "\n\nYou have enough information. Assess risk level NOW and provide recommendations. Use format: [RISK_LEVEL: LOW/MODERATE/HIGH]",
		askOneInstruction: "\n\nAsk ONLY this ONE question: '%s' Do NOT ask multiple questions. Wait for answer.",

		escalationMessage: "Severe pain detected. I'm escalating your case to the doctor now. If symptoms are intense, please seek urgent care immediately.",
		holdingMessage:    "We have already notified your doctor due to severe symptoms. Please follow urgent care advice and await contact.",
		notConfigured:     "The assistant is not available right now because the completion service is not configured. If you have urgent symptoms, please contact your care team directly.",
	},
	"ta": {
		system: `நீங்கள் ஒரு மருத்துவ உதவியாளர் பாட். அறுவை சிகிச்சைக்குப் பிறகு பராமரிப்புக்காக நோயாளிகளுக்கு உதவுகிறீர்கள். அறுவை சிகிச்சை: %s.

மிக முக்கியமான விதிகள்:
1. எல்லா கேள்விகளையும் தமிழில் மட்டுமே கேட்கவும் - ஒருபோதும் ஆங்கிலத்தில் கேட்காதீர்கள்
2. ஒவ்வொரு பதிலுக்கும் ஒரு கேள்வியை மட்டும் கேட்கவும் - ஒருபோதும் பல கேள்விகளை ஒரே நேரத்தில் கேட்காதீர்கள்
3. அடுத்த கேள்வியைக் கேட்க முன்பு நோயாளியின் பதிலுக்குக் காத்திருக்கவும்
4. அனைத்து அறிகுறிகளும் மதிப்பீடு செய்யப்படும் வரை பரிந்துரைகளை வழங்காதீர்கள்
5. எப்போதும் பச்சாதாபமாகவும் தொழில்முறையாகவும் இருங்கள்

உரையாடல் பாய்வு:
- கேட்க வேண்டிய அறிகுறிகள் (ஒரு நேரத்தில் ஒன்று): வலி, வீக்கம், இரத்தப்போக்கு, தொற்று, குணமடைய தாமதம்
- ஒவ்வொரு பதிலுக்கும் பிறகு, அது உயர் ஆபத்து (கடுமையான/அவசர) என்பதை பகுப்பாய்வு செய்யவும் அல்லது தொடர்ந்து கேட்கவும்
- 5 அறிகுறிகளும் கேட்கப்பட்ட பிறகு, முழுமையான ஆபத்து மதிப்பீடு மற்றும் பரிந்துரைகளை வழங்கவும்

தற்போதைய நிலை: %s
ஏற்கனவே கேட்ட அறிகுறிகள்: %s

முக்கியம்: நீங்கள் அனுப்பும் எல்லா பதில்களும், கேள்விகளும், பரிந்துரைகளும் தமிழில் மட்டுமே இருக்க வேண்டும். ஆங்கிலத்தில் எதுவும் எழுத வேண்டாம்.`,
		stageAssessing: "மதிப்பீடு",
		stageAsking:    "கேள்விகள் கேட்கிறது",
		noneWord:       "இல்லை",
		unknownSurgery: "தெரியவில்லை",

		assessInstruction: "\n\nஉங்களிடம் போதுமான தகவல்கள் உள்ளன. இப்போது ஆபத்து நிலையை மதிப்பீடு செய்து பரிந்துரைகளை வழங்கவும். பயன்படுத்தவும்: [RISK_LEVEL: LOW/MODERATE/HIGH]",
		askOneInstruction: "\n\nஇந்த ஒரு கேள்வியை மட்டும் கேட்கவும்: '%s' பல கேள்விகளை கேட்காதீர்கள். பதிலுக்கு காத்திருக்கவும்.",

		escalationMessage: "Severe pain detected. I'm escalating your case to the doctor now. If symptoms are intense, please seek urgent care immediately.",
		holdingMessage:    "We have already notified your doctor due to severe symptoms. Please follow urgent care advice and await contact.",
		notConfigured:     "பிழை: உதவியாளர் சேவை கட்டமைக்கப்படவில்லை. அவசர அறிகுறிகள் இருந்தால் உங்கள் மருத்துவ குழுவை நேரடியாக தொடர்பு கொள்ளவும்.",
	},
}

// promptsFor returns the instruction set for a locale, defaulting to English.
func promptsFor(locale string) promptSet {
	if p, ok := promptSets[locale]; ok {
		return p
	}
	return promptSets["en"]
}

// urgentAdvisory is appended whenever a turn resolves to high risk. It is not
// localized; the original product shipped it in English for every locale.
const urgentAdvisory = "\n\n⚠️ HIGH RISK DETECTED ⚠️\n\n" +
	"Based on your symptoms, this requires URGENT medical attention:\n\n" +
	"1. Contact your doctor IMMEDIATELY\n" +
	"2. Go to emergency care if symptoms are severe\n" +
	"3. Do NOT delay - complications can worsen quickly\n\n" +
	"Your doctor has been automatically notified."

// preventiveAdvisory is appended to low-risk replies once enough symptoms are
// gathered and the model did not already provide recommendations.
const preventiveAdvisory = "\n\n💡 PREVENTIVE MEASURES & HOME CARE:\n\n" +
	"• Keep the surgical site clean and dry\n" +
	"• Take prescribed medications as directed\n" +
	"• Watch for signs of infection (fever, redness, pus)\n" +
	"• Avoid strenuous activities during recovery\n" +
	"• Follow your doctor's post-operative instructions\n\n" +
	"SUITABLE MEDICATIONS (consult doctor first):\n" +
	"• Pain management: Acetaminophen or Ibuprofen (as prescribed)\n" +
	"• Infection prevention: Keep area clean, change dressings regularly\n" +
	"• Swelling reduction: Apply ice packs, elevate if applicable\n\n" +
	"⚠️ Monitor closely. Contact doctor if symptoms worsen or persist."

// recommendationWords: when any of these already appear in a low-risk reply,
// the preventive advisory is not appended again.
var recommendationWords = []string{"preventive", "medication", "recommendation"}
