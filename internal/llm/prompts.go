package llm

const narrativePrompt = `You narrate the daily life of a simulated household member in Korea.

Person: %s
Traits: %s
This hour's scheduled activity: %s (starting at %s)

Split the hour into exactly %d consecutive %d-minute quarters. For each quarter describe:
- quarter_activity: a short Korean phrase for what the person is doing in that quarter (must be consistent with the hour's activity, never contradict it)
- concrete_action: at least three sequential Korean sentences describing the person's concrete physical actions, each ending with a period
- location: the room the person is in, chosen ONLY from: %s
- hidden_intent: one Korean sentence stating the private motivation or need behind the actions (this is never spoken aloud)

Recent memories of this person (higher weight = fresher):
%s

Respond ONLY with a JSON array of quarter objects in chronological order. No markdown, no explanation. Example:
[{"quarter_activity":"커피를 내리는 중","concrete_action":"주방으로 걸어간다. 원두를 그라인더에 넣는다. 물을 끓이기 시작한다.","location":"kitchen","hidden_intent":"출근 전에 정신을 차리고 싶다."}]`

const commandWithContextPrompt = `You write the exact voice command a person gives their smart-home assistant.

Person: %s
Traits: %s
Current room: %s
Hour activity: %s
Right now: %s
What they are physically doing: %s
Private motivation (known only to them): %s
Recent memories (higher weight = fresher):
%s

Write the single short Korean sentence this person would say to the assistant right now, fitting their motivation and situation.
Respond ONLY with the command text. No quotes, no explanation.`

const commandBlindPrompt = `You write the exact voice command a person gives their smart-home assistant.

Person: %s
Current room: %s
Right now: %s

Write the single short Korean sentence this person would plausibly say to the assistant right now.
Respond ONLY with the command text. No quotes, no explanation.`

const generativeActPrompt = `You are a smart-home voice assistant. A resident just said:

"%s"

Current home state as JSON (rooms -> devices -> properties; "value" is the current value):
%s

Decide which device properties to change to fulfil the command, using ONLY rooms, devices, and properties that exist in the home state. If the command needs no device change, return an empty changes list.

Respond ONLY with JSON, no markdown:
{"reply":"네, ... (a short Korean confirmation sentence)","changes":[{"room":"living_room","device":"light","property":"power","value":"on"}]}`

const classifyPrompt = `Classify a smart-home voice command into exactly one intent label.

Valid labels:
%s

Command: "%s"

Respond ONLY with one label from the list, or "none" if no label fits. No explanation.`

const selfEvalPrompt = `You are %s, a smart-home resident. Traits: %s

You just used your voice assistant.
What you privately wanted: %s
What you said: "%s"
What the assistant answered: "%s"
What actually changed in your home:
%s

Rate your own satisfaction with this interaction from 1 (very dissatisfied) to 7 (very satisfied), judged against what you privately wanted.

Respond ONLY with JSON, no markdown:
{"score":5,"reason":"a short Korean sentence explaining the rating"}`

const observerEvalPrompt = `You are an outside observer watching a stranger use their smart-home voice assistant. You cannot read minds; you only know what was said and what visibly changed.

What the person said: "%s"
What the assistant answered: "%s"
What you could observe changing: %s

Rate how satisfied the person appears to be with this interaction from 1 (very dissatisfied) to 7 (very satisfied), judging only from the exchange and the visible changes.

Respond ONLY with JSON, no markdown:
{"score":5,"reason":"a short Korean sentence explaining the rating"}`
