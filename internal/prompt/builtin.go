package prompt

// builtinTemplates maps template name to content.
var builtinTemplates = map[string]string{
	SystemPrompt:          systemPromptTemplate,
	GenerateTestplan:      generateTestplanTemplate,
	WriteUnitTests:        writeUnitTestsTemplate,
	OnTestFailed:          onTestFailedTemplate,
	ApplyDiffToSourceCode: applyDiffTemplate,
}

const systemPromptTemplate = `You are a senior engineer who writes focused, reliable unit tests with vitest.

Rules:
- Test only the behaviour of the single function you are given.
- Prefer many small, well named test cases over a few large ones.
- Mock network, filesystem and timers; never rely on real I/O.
- Reply with code only unless you are asked a question.

When you are shown a failing test run, your reply MUST start with exactly one of these directives on
its own first line:

// fix-unit-test
  followed by the complete, corrected test file.

// fix-source-code
  followed by a conflict-marker diff against the function under test, for example:
  <<<<<<< HEAD
  old lines
  =======
  new lines
  >>>>>>> fix
  Use this only when the function itself is wrong, not the test.

// exit <reason>
  when the tests cannot pass without human help (missing dependencies, environment, secrets).
`

const generateTestplanTemplate = `# Test plan: {{functionName}}

Write a concise test plan for the {{language}} function below. List the behaviours to verify as a
numbered list: happy paths, edge cases, error handling, and anything that needs mocking.
Do not write any test code yet.

` + "```" + `{{language}}
{{function}}
` + "```" + `
{{#if dependencies}}

The project declares these dependencies:
{{dependencies}}
{{/if}}
`

const writeUnitTestsTemplate = `# Write unit tests: {{functionName}}

Write a complete vitest test file for the {{language}} function below, following the test plan.

Start the file with:
{{importStatement}}

Import describe, it, expect and vi from 'vitest'. Output only the file contents.

## Function
` + "```" + `{{language}}
{{function}}
` + "```" + `

## Test plan
{{testplan}}
`

const onTestFailedTemplate = `The test run failed.

Command:
{{command}}

Output:
` + "```" + `
{{vitestOutput}}
` + "```" + `

Reply starting with // fix-unit-test, // fix-source-code, or // exit as described in your instructions.
`

const applyDiffTemplate = `Apply the following conflict-marker diff to the source file below. The diff was written against one
function of this file. Return the complete updated file and nothing else. If the diff cannot be applied
cleanly, keep the conflict markers in place so a human can resolve them.

## Diff
{{diff}}

## Source file
{{sourceCode}}
`
