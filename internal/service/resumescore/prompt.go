package resumescore

import "fmt"

// systemPrompt frames the model as a campus-placement reviewer for
// full-stack roles with AI/ML exposure.
const systemPrompt = `You are an expert AI hiring agent specializing in campus placements for technology companies. You evaluate candidates for Full Stack Developer positions who can work across UI, backend, data, infrastructure and AI/ML layers, using a 100-point scoring system. You always answer with a single JSON object and nothing else.`

const rubric = `EVALUATION FRAMEWORK (base score max 95):

1. Technical Foundation (35 points)
   - Frontend development: React/Angular/Vue, UI/UX, state management
   - Backend development: API design, authentication, Node/Java/Python/Go
   - Database and data modeling: SQL and NoSQL, schema design
   - Infrastructure and DevOps: cloud platforms, CI/CD, containers
   - AI/ML capability: ML frameworks, model training, LLM integration
   - Core engineering: data structures, system design, version control

2. Projects & Practical Experience (40 points)
   - End-to-end full-stack implementations
   - AI/ML integration in shipped applications
   - Architecture quality, hackathons, open source, research

3. Learning & Adaptability (25 points)
   - Modern stack adoption and technology diversity
   - AI/ML learning path: courses, certifications, competitions
   - Team projects and communication

BACKGROUND BONUS (max 5 points, on top of the base score):
Award only for exceptional software work from non-CS engineering
branches (ECE, EEE, Mechanical, Mechatronics and similar): up to 3 for
full-stack proficiency with production deployments, up to 2 for AI/ML
implementation and domain-specific integration.

Final totalScore = base + bonus, never above 100.

Also rate each stack layer on a 0-10 scale: frontend, backend, database,
infrastructure, coreCS (data structures, algorithms, system design) and
genAi (LLM integration, prompt engineering, RAG).

Return exactly this JSON shape:
{
  "totalScore": number,
  "technicalFoundation": number,
  "projectExperience": number,
  "learningAdaptability": number,
  "backgroundBonus": number,
  "frontend": number,
  "backend": number,
  "database": number,
  "infrastructure": number,
  "coreCS": number,
  "genAi": number,
  "summary": "two-line summary focusing on full-stack and AI capability"
}`

// maxResumeChars bounds the prompt so oversized extractions cannot blow
// the model context window.
const maxResumeChars = 24000

func buildUserPrompt(resumeText, degree string) string {
	if len(resumeText) > maxResumeChars {
		resumeText = resumeText[:maxResumeChars]
	}
	return fmt.Sprintf("Resume to evaluate:\n%s\n\nStudent's degree: %s\n\n%s", resumeText, degree, rubric)
}
