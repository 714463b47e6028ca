package pipeline

// Category is the closed vocabulary the classifier maps tickets into.
const (
	CategoryBilling   = "billing"
	CategoryTechnical = "technical"
	CategorySecurity  = "security"
	CategoryGeneral   = "general"
)

// Categories lists the valid ticket categories in canonical order.
var Categories = []string{CategoryBilling, CategoryTechnical, CategorySecurity, CategoryGeneral}

const classifierSystemPrompt = `You are a support ticket classifier for a software company.
Classify the ticket into exactly one of these categories:
- billing: payments, invoices, refunds, subscription charges, pricing
- technical: bugs, errors, outages, performance, integration problems
- security: account compromise, suspicious activity, data privacy, access control
- general: everything else, including product questions and feedback

Respond with JSON only, no prose:
{"category": "<one of billing|technical|security|general>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const classifierUserPrompt = `Subject: %s

Description: %s`

const drafterSystemPrompt = `You are a senior support agent writing customer-facing replies.
Use the knowledge base excerpts when they are relevant and never invent
policies, prices or procedures that are not supported by them. Be concise,
empathetic and concrete: acknowledge the problem, give actionable steps, and
close politely. Reply with the response text only, no JSON and no preamble.`

const drafterUserPrompt = `Subject: %s

Description: %s

Knowledge base excerpts:
%s

Write the support response.`

const redraftUserPrompt = `Subject: %s

Description: %s

Knowledge base excerpts:
%s

Your previous draft was rejected by the quality reviewer with this feedback:
%s

Write an improved support response that addresses every point of the feedback.
Reply with the response text only.`

const reviewerSystemPrompt = `You are a strict quality reviewer for customer support responses.
Evaluate the draft for accuracy against the ticket, completeness, tone and
safety. Reject drafts that ignore parts of the question, contradict the
provided context, promise anything unverifiable, or could mislead the customer.

Respond with JSON only, no prose:
{"approved": <true|false>, "score": <0.0-1.0>, "feedback": "<what to fix, empty if approved>", "issues": ["<specific problem>", ...]}`

const reviewerUserPrompt = `Subject: %s

Description: %s

Draft response:
%s`

const refinerSystemPrompt = `You are a search strategist for a support knowledge base.
A draft answer was rejected; produce better retrieval queries so the next
draft has stronger supporting context. Diversify vocabulary, include likely
synonyms and error terms, and keep each query short and literal.

Respond with JSON only, no prose:
{"refined_queries": ["<query>", "<query>", "<query>"]}
Return between 3 and 5 queries.`

const refinerUserPrompt = `Subject: %s

Description: %s

Reviewer feedback on the rejected draft:
%s

Previous queries that did not surface enough context:
%s`

const noContextPlaceholder = "(no relevant excerpts found)"
