// Package web provides the embedded dashboard HTML/CSS/JS.
package web

import "github.com/gofiber/fiber/v2"

// handleDashboard serves the main dashboard HTML.
func (s *Server) handleDashboard(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(dashboardHTML)
}

// handleDashboardJS serves the dashboard JavaScript.
func (s *Server) handleDashboardJS(c *fiber.Ctx) error {
	c.Set("Content-Type", "application/javascript; charset=utf-8")
	return c.SendString(dashboardJS)
}

// handleDashboardCSS serves the dashboard CSS.
func (s *Server) handleDashboardCSS(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/css; charset=utf-8")
	return c.SendString(dashboardCSS)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>corefuzz Dashboard</title>
    <link rel="stylesheet" href="/dashboard.css">
    <link href="https://fonts.googleapis.com/css2?family=JetBrains+Mono:wght@400;500;700&family=Inter:wght@400;500;600;700&display=swap" rel="stylesheet">
</head>
<body>
    <div class="app">
        <!-- Sidebar -->
        <aside class="sidebar">
            <div class="logo">
                <span class="logo-text">corefuzz</span>
            </div>
            <nav class="nav">
                <a href="#" class="nav-item active" data-page="dashboard">
                    Dashboard
                </a>
                <a href="#" class="nav-item" data-page="crashes">
                    Crash Clusters
                </a>
            </nav>
            <div class="sidebar-footer">
                <span class="version">v0.1.0-dev</span>
            </div>
        </aside>

        <!-- Main Content -->
        <main class="main">
            <!-- Header -->
            <header class="header">
                <h1 class="page-title">Dashboard</h1>
                <div class="header-actions">
                    <span class="target-label" id="target-label">-</span>
                    <span class="status-indicator" id="status-indicator">
                        <span class="status-dot"></span>
                        <span class="status-text">Idle</span>
                    </span>
                </div>
            </header>

            <!-- Dashboard Content -->
            <div class="content" id="dashboard-page">
                <!-- Stats Grid -->
                <section class="stats-grid">
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="executions">0</span>
                            <span class="stat-label">Executions</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="execs-per-sec">0</span>
                            <span class="stat-label">Execs/sec</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="coverage">0%</span>
                            <span class="stat-label">Coverage</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card crash-card">
                        <div class="stat-content">
                            <span class="stat-value" id="crashes">0</span>
                            <span class="stat-label">Crashes</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="hangs">0</span>
                            <span class="stat-label">Hangs</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="corpus-size">0</span>
                            <span class="stat-label">Corpus Size</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="favored-size">0</span>
                            <span class="stat-label">Favored</span>
                        </div>
                    </div>
                    <div class="stat-card glass-card">
                        <div class="stat-content">
                            <span class="stat-value" id="elapsed-time">0s</span>
                            <span class="stat-label">Elapsed Time</span>
                        </div>
                    </div>
                </section>

                <div class="stagnant-banner hidden" id="stagnant-banner">
                    corpus growth has stagnated — aggression mode active
                </div>

                <!-- Recent Crashes -->
                <section class="live-feed glass-card">
                    <div class="section-header">
                        <h2 class="section-title">Crash Clusters</h2>
                    </div>
                    <div class="anomaly-list" id="crash-list-preview">
                        <div class="log-placeholder">
                            <span class="placeholder-text">no crashes recorded</span>
                        </div>
                    </div>
                </section>
            </div>

            <!-- Crashes Page (hidden by default) -->
            <div class="content hidden" id="crashes-page">
                <section class="glass-card">
                    <h2 class="section-title">Crash Clusters</h2>
                    <div class="anomaly-list" id="crash-list">
                        <div class="log-placeholder">
                            <span class="placeholder-text">no crashes recorded</span>
                        </div>
                    </div>
                </section>
            </div>
        </main>
    </div>

    <script src="/dashboard.js"></script>
</body>
</html>`

const dashboardCSS = `:root {
    --bg-primary: #0a0a0f;
    --bg-secondary: #12121a;
    --bg-tertiary: #1a1a24;
    --text-primary: #ffffff;
    --text-secondary: #a0a0b0;
    --text-muted: #606070;
    --accent-primary: #00d4ff;
    --accent-secondary: #7c3aed;
    --accent-success: #10b981;
    --accent-warning: #f59e0b;
    --accent-danger: #ef4444;
    --border-color: rgba(255, 255, 255, 0.08);
    --glass-bg: rgba(255, 255, 255, 0.03);
    --glass-border: rgba(255, 255, 255, 0.08);
    --shadow: 0 8px 32px rgba(0, 0, 0, 0.4);
    --radius: 12px;
    --font-mono: 'JetBrains Mono', monospace;
    --font-sans: 'Inter', -apple-system, BlinkMacSystemFont, sans-serif;
}

* {
    margin: 0;
    padding: 0;
    box-sizing: border-box;
}

body {
    font-family: var(--font-sans);
    background: var(--bg-primary);
    color: var(--text-primary);
    min-height: 100vh;
    overflow-x: hidden;
}

body::before {
    content: '';
    position: fixed;
    top: 0;
    left: 0;
    right: 0;
    bottom: 0;
    background:
        radial-gradient(circle at 20% 80%, rgba(0, 212, 255, 0.08) 0%, transparent 50%),
        radial-gradient(circle at 80% 20%, rgba(124, 58, 237, 0.08) 0%, transparent 50%),
        radial-gradient(circle at 40% 40%, rgba(16, 185, 129, 0.04) 0%, transparent 40%);
    pointer-events: none;
    z-index: -1;
}

.app {
    display: flex;
    min-height: 100vh;
}

.sidebar {
    width: 220px;
    background: var(--bg-secondary);
    border-right: 1px solid var(--border-color);
    display: flex;
    flex-direction: column;
    position: fixed;
    height: 100vh;
    z-index: 100;
}

.logo {
    padding: 24px;
    display: flex;
    align-items: center;
    gap: 12px;
    border-bottom: 1px solid var(--border-color);
}

.logo-text {
    font-size: 20px;
    font-weight: 700;
    background: linear-gradient(135deg, var(--accent-primary), var(--accent-secondary));
    -webkit-background-clip: text;
    -webkit-text-fill-color: transparent;
    background-clip: text;
}

.nav {
    padding: 16px 12px;
    flex: 1;
}

.nav-item {
    display: flex;
    align-items: center;
    gap: 12px;
    padding: 12px 16px;
    margin-bottom: 4px;
    border-radius: 8px;
    color: var(--text-secondary);
    text-decoration: none;
    transition: all 0.2s ease;
}

.nav-item:hover {
    background: var(--glass-bg);
    color: var(--text-primary);
}

.nav-item.active {
    background: linear-gradient(135deg, rgba(0, 212, 255, 0.15), rgba(124, 58, 237, 0.15));
    color: var(--accent-primary);
    border: 1px solid rgba(0, 212, 255, 0.2);
}

.sidebar-footer {
    padding: 16px 24px;
    border-top: 1px solid var(--border-color);
}

.version {
    font-size: 12px;
    color: var(--text-muted);
    font-family: var(--font-mono);
}

.main {
    flex: 1;
    margin-left: 220px;
    min-height: 100vh;
}

.header {
    padding: 24px 32px;
    display: flex;
    justify-content: space-between;
    align-items: center;
    border-bottom: 1px solid var(--border-color);
    background: rgba(10, 10, 15, 0.8);
    backdrop-filter: blur(10px);
    position: sticky;
    top: 0;
    z-index: 50;
}

.page-title {
    font-size: 24px;
    font-weight: 600;
}

.header-actions {
    display: flex;
    align-items: center;
    gap: 16px;
}

.target-label {
    font-family: var(--font-mono);
    font-size: 13px;
    color: var(--text-secondary);
}

.status-indicator {
    display: flex;
    align-items: center;
    gap: 8px;
    padding: 8px 16px;
    border-radius: 20px;
    background: var(--glass-bg);
    border: 1px solid var(--glass-border);
}

.status-dot {
    width: 8px;
    height: 8px;
    border-radius: 50%;
    background: var(--text-muted);
}

.status-indicator.running .status-dot {
    background: var(--accent-success);
    animation: pulse 1.5s infinite;
}

@keyframes pulse {
    0%, 100% { opacity: 1; transform: scale(1); }
    50% { opacity: 0.5; transform: scale(1.2); }
}

.status-text {
    font-size: 13px;
    font-weight: 500;
    color: var(--text-secondary);
}

.content {
    padding: 24px 32px;
}

.content.hidden {
    display: none;
}

.glass-card {
    background: var(--glass-bg);
    border: 1px solid var(--glass-border);
    border-radius: var(--radius);
    padding: 24px;
    backdrop-filter: blur(10px);
    margin-bottom: 24px;
}

.section-title {
    font-size: 16px;
    font-weight: 600;
    margin-bottom: 20px;
    color: var(--text-primary);
}

.section-header {
    display: flex;
    justify-content: space-between;
    align-items: center;
    margin-bottom: 16px;
}

.section-header .section-title {
    margin-bottom: 0;
}

.stats-grid {
    display: grid;
    grid-template-columns: repeat(4, 1fr);
    gap: 16px;
    margin-bottom: 24px;
}

.stat-card {
    display: flex;
    align-items: center;
    gap: 16px;
    padding: 20px;
}

.stat-content {
    display: flex;
    flex-direction: column;
}

.stat-value {
    font-size: 24px;
    font-weight: 700;
    font-family: var(--font-mono);
    color: var(--text-primary);
}

.stat-label {
    font-size: 12px;
    color: var(--text-muted);
    margin-top: 4px;
}

.crash-card {
    border-color: rgba(239, 68, 68, 0.3);
    background: rgba(239, 68, 68, 0.05);
}

.crash-card .stat-value {
    color: var(--accent-danger);
}

.stagnant-banner {
    padding: 12px 20px;
    margin-bottom: 24px;
    border-radius: 8px;
    background: rgba(245, 158, 11, 0.1);
    border: 1px solid rgba(245, 158, 11, 0.3);
    color: var(--accent-warning);
    font-size: 13px;
}

.stagnant-banner.hidden {
    display: none;
}

.log-placeholder {
    display: flex;
    flex-direction: column;
    align-items: center;
    justify-content: center;
    padding: 48px;
    color: var(--text-muted);
}

.placeholder-text {
    font-size: 14px;
}

.anomaly-item {
    padding: 16px;
    background: var(--bg-tertiary);
    border-radius: 8px;
    margin-bottom: 12px;
    border-left: 3px solid var(--accent-danger);
}

.anomaly-header {
    display: flex;
    justify-content: space-between;
    align-items: center;
    margin-bottom: 8px;
}

.anomaly-severity {
    padding: 4px 12px;
    border-radius: 4px;
    font-size: 11px;
    font-weight: 600;
    text-transform: uppercase;
    background: rgba(239, 68, 68, 0.2);
    color: var(--accent-danger);
}

.anomaly-url {
    font-family: var(--font-mono);
    font-size: 13px;
    color: var(--text-primary);
    margin-bottom: 8px;
    word-break: break-all;
}

.anomaly-reason {
    font-size: 13px;
    color: var(--text-secondary);
}

::-webkit-scrollbar {
    width: 8px;
    height: 8px;
}

::-webkit-scrollbar-track {
    background: var(--bg-tertiary);
    border-radius: 4px;
}

::-webkit-scrollbar-thumb {
    background: var(--border-color);
    border-radius: 4px;
}

::-webkit-scrollbar-thumb:hover {
    background: var(--text-muted);
}

@media (max-width: 1400px) {
    .stats-grid {
        grid-template-columns: repeat(3, 1fr);
    }
}

@media (max-width: 1024px) {
    .sidebar {
        width: 180px;
    }
    .main {
        margin-left: 180px;
    }
    .stats-grid {
        grid-template-columns: repeat(2, 1fr);
    }
}`

const dashboardJS = `// corefuzz dashboard JavaScript

class CorefuzzDashboard {
    constructor() {
        this.ws = null;
        this.isRunning = false;
        this.crashes = [];

        this.init();
    }

    init() {
        this.bindEvents();
        this.connectWebSocket();
    }

    bindEvents() {
        document.querySelectorAll('.nav-item').forEach(item => {
            item.addEventListener('click', (e) => {
                e.preventDefault();
                this.navigateTo(item.dataset.page);
            });
        });
    }

    navigateTo(page) {
        document.querySelectorAll('.nav-item').forEach(item => {
            item.classList.toggle('active', item.dataset.page === page);
        });

        const titles = {
            dashboard: 'Dashboard',
            crashes: 'Crash Clusters'
        };
        document.querySelector('.page-title').textContent = titles[page] || 'Dashboard';

        document.querySelectorAll('.content').forEach(content => {
            content.classList.add('hidden');
        });
        const pageEl = document.getElementById(page + '-page');
        if (pageEl) pageEl.classList.remove('hidden');
    }

    connectWebSocket() {
        const protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
        const wsUrl = protocol + '//' + window.location.host + '/ws';

        this.ws = new WebSocket(wsUrl);

        this.ws.onopen = () => {
            console.log('WebSocket connected');
        };

        this.ws.onmessage = (event) => {
            const message = JSON.parse(event.data);
            this.handleMessage(message);
        };

        this.ws.onclose = () => {
            console.log('WebSocket disconnected, reconnecting...');
            setTimeout(() => this.connectWebSocket(), 2000);
        };

        this.ws.onerror = (error) => {
            console.error('WebSocket error:', error);
        };
    }

    handleMessage(message) {
        switch (message.type) {
            case 'stats':
                this.updateStats(message.data);
                break;
            case 'crashes':
                this.updateCrashes(message.data);
                break;
        }
    }

    updateStats(stats) {
        this.isRunning = stats.isRunning;

        document.getElementById('target-label').textContent = stats.targetPath || '-';
        document.getElementById('executions').textContent = this.formatNumber(stats.executions);
        document.getElementById('execs-per-sec').textContent = stats.execsPerSec.toFixed(1);
        document.getElementById('coverage').textContent = stats.coveragePercent.toFixed(2) + '%';
        document.getElementById('crashes').textContent = this.formatNumber(stats.crashes);
        document.getElementById('hangs').textContent = this.formatNumber(stats.hangs);
        document.getElementById('corpus-size').textContent = this.formatNumber(stats.corpusSize);
        document.getElementById('favored-size').textContent = this.formatNumber(stats.favoredSize);
        document.getElementById('elapsed-time').textContent = stats.elapsedTime || '0s';

        const banner = document.getElementById('stagnant-banner');
        banner.classList.toggle('hidden', !stats.stagnant);

        this.updateStatusIndicator();
    }

    updateCrashes(crashes) {
        this.crashes = crashes;
        this.renderCrashes('crash-list');
        this.renderCrashes('crash-list-preview', 5);
    }

    renderCrashes(elementId, limit) {
        const container = document.getElementById(elementId);
        if (!container) return;

        const items = limit ? this.crashes.slice(0, limit) : this.crashes;

        if (items.length === 0) {
            container.innerHTML = '<div class="log-placeholder"><span class="placeholder-text">no crashes recorded</span></div>';
            return;
        }

        container.innerHTML = items.map(c => {
            return '<div class="anomaly-item">' +
                '<div class="anomaly-header">' +
                    '<span class="anomaly-url">cluster #' + c.id + '</span>' +
                    '<span class="anomaly-severity">' + c.memberCount + ' member' + (c.memberCount === 1 ? '' : 's') + '</span>' +
                '</div>' +
                '<div class="anomaly-reason">representative: ' + c.representative + '</div>' +
            '</div>';
        }).join('');
    }

    updateStatusIndicator() {
        const indicator = document.getElementById('status-indicator');
        if (this.isRunning) {
            indicator.classList.add('running');
            indicator.querySelector('.status-text').textContent = 'Running';
        } else {
            indicator.classList.remove('running');
            indicator.querySelector('.status-text').textContent = 'Stopped';
        }
    }

    formatNumber(num) {
        if (num >= 1000000) return (num / 1000000).toFixed(1) + 'M';
        if (num >= 1000) return (num / 1000).toFixed(1) + 'K';
        return num.toString();
    }
}

document.addEventListener('DOMContentLoaded', () => {
    window.dashboard = new CorefuzzDashboard();
});`
