package extractor

const extractionPrompt = `You are preparing an account handover from a sales conversation.
Extract these fields from the text below into a single JSON object:
- goals: the client's main goals
- commitments: promises made by us to the client
- risks: client hesitations, fears or blockers
- tech_stack: technical requirements and systems mentioned

Each value must be either a plain string or a list of short phrases.
Use exactly these four keys and no others. If a field is not mentioned, use "N/A".

Text:
---
%s
---

Return ONLY the JSON object. Do not wrap it in markdown code fences or add any other text.`
