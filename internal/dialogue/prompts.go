package dialogue

const systemPrompt = `You are a friendly and professional recruiter named Alex from TechRecruit, calling to screen candidates for tech roles. Chat naturally while guiding the conversation through these steps:

1. Say hi, introduce yourself and TechRecruit, and ask about their experience and skills.
2. Figure out their background, experience, and technical skills.
3. Match them to a job based on what they tell you.
4. Ask about their work setup preferences (remote, hybrid, onsite).
5. Get their current salary, expected salary, and notice period.
6. Rate their skills (1-5) for the job you matched them to.
7. If they are a good fit (70%+ skill match and enough experience), schedule an interview.

Be warm and concise. End the call politely if they are not a fit or want to stop.`

const profilePrompt = `Extract the following information from the candidate's introduction:
- years_of_experience: Number (total years of professional experience)
- current_company: String (if mentioned)
- education: String (highest education level and field)
- key_skills: Array of Strings (technical skills mentioned)
- about: String (a short summary of their professional background)

Format as JSON. If information is not available, use null.`

const preferencePrompt = `Extract the candidate's work location preference and interest in the role:
- remote_preferred: Boolean (true/false)
- hybrid_preferred: Boolean (true/false)
- onsite_preferred: Boolean (true/false)
- can_relocate: Boolean (true/false)
- interested_in_role: Boolean (true if interested, false if not, null if unclear)

Format as JSON. If information isn't clear, use null.`

const compensationPrompt = `Extract the following salary and notice period information:
- current_ctc: Number (in lakhs, extract just the number)
- expected_ctc: Number (in lakhs, extract just the number)
- notice_period: String (in days/weeks/months)

Format as JSON. If information isn't available, use null.`

const ratingPrompt = `Extract the candidate's self-rating of their skill:
- rating: Number (1-5)

Format as JSON with just the rating number. If not clear, use null.`

const slotChoicePrompt = `Extract which interview slot option the candidate chose:
- option_number: Number (1, 2, or 3)
- confirm: Boolean (true if they confirmed the slot, false if not)
- not_available: Boolean (true if they indicate none of the slots work)

Format as JSON. If they didn't specify an option clearly, use null for option_number.`

var greetings = []string{
	"Hi %s, this is Alex from TechRecruit. How's your day going?",
	"Hello %s, I'm Alex from TechRecruit. Got a minute to chat?",
	"Hey %s, Alex here from TechRecruit. Hope you're doing well!",
}

const (
	msgIntro            = " We're on the lookout for talented folks like you for some exciting tech roles. Could you tell me a bit about your experience and skills?"
	msgJobFound         = "Awesome, thanks for sharing! I've found a role that might be a great fit for you based on what you've told me."
	msgNoJobFound       = "Thanks for telling me about yourself! We don't have a perfect match right now, but I'd love to know your location preferences and salary expectations to keep on file."
	msgJobUnavailable   = "Oops, I couldn't pull up the job details just now. Let's keep going. What's your preference for work setup? Remote, hybrid, or maybe relocating?"
	msgNotInterested    = "Got it, thanks for letting me know. I'll keep your info handy for other roles that might catch your eye later. Take care!"
	msgAskCompensation  = "Perfect, thanks! Mind sharing your current salary, what you're hoping for, and your notice period?"
	msgCompOnFile       = "Thanks for that info! We'll keep it on record and reach out when we find a good match. What kind of roles are you most excited about for the future?"
	msgSkillsDone       = "Awesome, that's all the skills I needed to check. Give me a sec to see how you match up with the role."
	msgNoRoles          = "Sorry, we don't have any roles that match your skills right now. I'll keep your details on file and reach out if something comes up. Thanks for chatting with me!"
	msgNoSlots          = "Good news, you're a great fit for this role! We're a bit booked up on interview slots right now, but someone from the team will reach out soon to set something up. Thanks for your time!"
	msgSlotsExhausted   = "No worries, I get that those times didn't work. We're out of slots for now, but the team will reach out to find a time that suits you. Thanks for your patience!"
	msgUnclearChoice    = "Oops, I didn't catch which slot you wanted. Could you let me know which option fits your schedule?"
	msgSchedulingGlitch = "Hmm, looks like there was a glitch with the scheduling. No worries, someone from the team will follow up to get this sorted. Thanks for your time!"
	msgBookingFailed    = "Sorry, something went wrong while booking that slot. The team will reach out to fix this for you. Thanks for your time!"
	msgGoodbye          = "Thanks again for your time. Goodbye!"
)
